package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"go-identity-service/internal/model"
)

type AuditStore interface {
	Insert(ctx context.Context, event model.AuthEvent) error
	List(ctx context.Context, page int, limit int) ([]model.AuthEvent, model.Meta, error)
}

type AuditService struct {
	store AuditStore
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Record persists one auth event. Auditing never fails the request it
// describes; storage errors are logged and swallowed.
func (s *AuditService) Record(ctx context.Context, action string, outcome string, email string, userID *string, clientIP string) {
	event := model.AuthEvent{
		ID:        uuid.NewString(),
		UserID:    userID,
		Email:     email,
		Action:    action,
		Outcome:   outcome,
		ClientIP:  clientIP,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Insert(ctx, event); err != nil {
		slog.Error("failed to record auth event", "action", action, "error", err)
	}
}

func (s *AuditService) List(ctx context.Context, page int, limit int) ([]model.AuthEvent, model.Meta, error) {
	return s.store.List(ctx, page, limit)
}
