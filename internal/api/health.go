package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/confidence-coach/internal/store"
)

const defaultHealthTimeout = 5 * time.Second

// SessionCounter reports the number of live coaching sessions.
type SessionCounter interface {
	Len() int
}

// HealthHandler reports archive reachability and the active completion provider.
type HealthHandler struct {
	repo     store.Repository
	provider string
	sessions SessionCounter
	timeout  time.Duration
}

// NewHealthHandler creates a health handler. sessions may be nil.
func NewHealthHandler(repo store.Repository, provider string, sessions SessionCounter) *HealthHandler {
	return &HealthHandler{repo: repo, provider: provider, sessions: sessions, timeout: defaultHealthTimeout}
}

// Health returns the health status of the API and its dependencies.
// An unreachable archive degrades the service but coaching keeps working.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok", "archive": "ok"}
	status := map[string]any{
		"status":   "healthy",
		"provider": h.provider,
		"checks":   checks,
	}
	if h.sessions != nil {
		status["active_sessions"] = h.sessions.Len()
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["archive"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
