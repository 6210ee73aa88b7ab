package agent

import (
	"context"

	"github.com/ashureev/confidence-coach/internal/coach"
	"github.com/ashureev/confidence-coach/internal/session"
)

// Coach is what the HTTP and WebSocket handlers need from the turn pipeline.
type Coach interface {
	// SubmitTurn runs one full turn for the session and commits the exchange.
	SubmitTurn(ctx context.Context, key session.Key, message string) (*TurnResult, error)

	// Summary returns the session's ledger analytics.
	Summary(ctx context.Context, key session.Key) (session.Summary, error)

	// Reset starts a fresh ledger for the session and returns its empty summary.
	Reset(ctx context.Context, key session.Key) (session.Summary, error)

	// Boosters returns the quick confidence boosters.
	Boosters() []coach.Booster
}

// Ensure Service implements Coach.
var _ Coach = (*Service)(nil)
