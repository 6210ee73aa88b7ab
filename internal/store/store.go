// Package store provides the write-only transcript archive.
package store

import (
	"context"
	"time"

	"github.com/ashureev/confidence-coach/internal/domain"
)

// Repository persists anonymous clients and the audit trail of conversations.
// It is never read to rebuild a ledger.
type Repository interface {
	// GetClient retrieves a client by ID. It returns nil, nil when absent.
	GetClient(ctx context.Context, clientID string) (*domain.Client, error)

	// UpsertClient creates or updates a client record.
	UpsertClient(ctx context.Context, client *domain.Client) error

	// UpdateLastSeen updates the last_seen_at timestamp for a client.
	UpdateLastSeen(ctx context.Context, clientID string, lastSeen time.Time) error

	// RecordExchange upserts the session row and appends turns in one transaction.
	RecordExchange(ctx context.Context, session domain.ArchivedSession, turns []domain.ArchivedTurn) error

	// CleanupStaleSessions removes archived sessions not updated within ttl.
	CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
