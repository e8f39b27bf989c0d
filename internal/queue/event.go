// Package queue carries auth audit events over RabbitMQ: the server publishes
// one event per successful registration or login, and cmd/auditlog consumes
// them into an append-only log.
package queue

import "time"

// Event types.
const (
	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
)

// AuthEvent is the payload published after a successful auth operation.
// Passwords and tokens are never part of it.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	RemoteIP   string    `json:"remote_ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
