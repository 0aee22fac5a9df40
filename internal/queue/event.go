// Package queue carries authentication events over RabbitMQ.
package queue

import "time"

// QueueName is the durable queue all auth events go to.
const QueueName = "auth.events"

// Event types.
const (
	EventUserRegistered    = "user.registered"
	EventUserLoggedIn      = "user.logged_in"
	EventTokenRevoked      = "token.revoked"
	EventUserStatusChanged = "user.status_changed"
	EventPasswordChanged   = "user.password_changed"
)

// AuthEvent is published after a successful credential or session change.
// It never carries secrets: no passwords and no raw tokens.
type AuthEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	LoginName  string    `json:"login_name"`
	Role       uint8     `json:"role"`
	Reason     string    `json:"reason,omitempty"`
	Active     *bool     `json:"active,omitempty"`
	ActorID    string    `json:"actor_id,omitempty"`
	IP         string    `json:"ip,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
