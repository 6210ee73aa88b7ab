package store

import (
	"context"
	"log/slog"
	"time"
)

const cleanupTimeout = 30 * time.Second

// CleanupHook returns a periodic task that deletes archived sessions idle
// longer than ttl. It is meant to run on the session sweeper's ticks.
func CleanupHook(repo Repository, ttl time.Duration) func(ctx context.Context) {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
		defer cancel()

		deleted, err := repo.CleanupStaleSessions(ctx, ttl)
		if err != nil {
			slog.Error("Failed to clean up archived sessions", "error", err)
			return
		}
		if deleted > 0 {
			slog.Info("Cleaned up archived sessions", "deleted", deleted, "ttl", ttl)
		}
	}
}
