package model

import "time"

type AuthEvent struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`
	Email     string    `json:"email"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	ClientIP  string    `json:"client_ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	AuditActionRegister = "register"
	AuditActionLogin    = "login"
	AuditActionRefresh  = "refresh"

	AuditOutcomeSuccess = "success"
	AuditOutcomeDenied  = "denied"
)
