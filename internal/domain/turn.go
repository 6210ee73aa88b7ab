package domain

import (
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserTurn is one accepted user submission.
type UserTurn struct {
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is a single ledger entry. ConfidenceLevel is only set on assistant turns.
type Turn struct {
	Role            Role      `json:"role"`
	Content         string    `json:"content"`
	Timestamp       time.Time `json:"timestamp"`
	ConfidenceLevel *int      `json:"confidence_level,omitempty"`
}

// IsAssistant reports whether the turn was produced by the coach.
func (t Turn) IsAssistant() bool {
	return t.Role == RoleAssistant
}
