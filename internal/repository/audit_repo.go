package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"go-identity-service/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Insert(ctx context.Context, event model.AuthEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO auth_events (id, user_id, email, action, outcome, client_ip, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.ID, event.UserID, event.Email, event.Action, event.Outcome, event.ClientIP, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

func (r *AuditRepository) List(ctx context.Context, page int, limit int) ([]model.AuthEvent, model.Meta, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM auth_events`).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count auth events: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	meta := model.Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}

	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, email, action, outcome, client_ip, created_at
		 FROM auth_events ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query auth events: %w", err)
	}
	defer rows.Close()

	events := make([]model.AuthEvent, 0)
	for rows.Next() {
		var e model.AuthEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.Email, &e.Action, &e.Outcome, &e.ClientIP, &e.CreatedAt); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan auth event: %w", err)
		}
		events = append(events, e)
	}

	return events, meta, rows.Err()
}
