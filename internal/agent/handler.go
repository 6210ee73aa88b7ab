package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/confidence-coach/internal/api"
	"github.com/ashureev/confidence-coach/internal/coach"
	"github.com/ashureev/confidence-coach/internal/identity"
	"github.com/ashureev/confidence-coach/internal/session"
)

// maxRequestBodySize bounds chat request bodies. Messages are capped far
// below this in characters.
const maxRequestBodySize = 64 << 10

// Handler serves the coaching HTTP API.
type Handler struct {
	coach       Coach
	rateLimiter *RateLimiter
}

// NewHandler creates a handler. A nil limiter disables rate limiting.
func NewHandler(c Coach, limiter *RateLimiter) *Handler {
	return &Handler{coach: c, rateLimiter: limiter}
}

// RegisterRoutes mounts the coaching routes under /api/coach.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/coach", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Get("/summary", h.HandleSummary)
		r.Post("/reset", h.HandleReset)
		r.Get("/boosters", h.HandleBoosters)
	})
}

// HandleChat handles POST /api/coach/chat and responds with the coaching reply.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)

	if h.rateLimiter != nil && !h.rateLimiter.Allow(key.ClientID) {
		api.Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	slog.Info("Coach chat request",
		"client_id", key.ClientID,
		"session_id", key.SessionID,
		"request_id", chiMiddleware.GetReqID(r.Context()),
		"message_length", utf8.RuneCountInString(req.Message),
	)

	result, err := h.coach.SubmitTurn(withChannel(r.Context(), "chat_http"), key, req.Message)
	if err != nil {
		status, msg := turnErrorStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("Coach turn failed", "client_id", key.ClientID, "session_id", key.SessionID, "error", err)
		}
		api.Error(w, status, msg)
		return
	}
	api.JSON(w, http.StatusOK, result.Reply)
}

// HandleSummary handles GET /api/coach/summary.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.coach.Summary(r.Context(), sessionKey(r))
	if err != nil {
		status, msg := turnErrorStatus(err)
		api.Error(w, status, msg)
		return
	}
	api.JSON(w, http.StatusOK, summary)
}

// HandleReset handles POST /api/coach/reset.
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	summary, err := h.coach.Reset(withChannel(r.Context(), "chat_http"), sessionKey(r))
	if err != nil {
		status, msg := turnErrorStatus(err)
		api.Error(w, status, msg)
		return
	}
	api.JSON(w, http.StatusOK, summary)
}

// HandleBoosters handles GET /api/coach/boosters.
func (h *Handler) HandleBoosters(w http.ResponseWriter, _ *http.Request) {
	api.JSON(w, http.StatusOK, map[string][]coach.Booster{"boosters": h.coach.Boosters()})
}

// sessionKey builds the ledger key from the identity middleware. Requests
// that bypassed it are keyed by remote IP.
func sessionKey(r *http.Request) session.Key {
	clientID := identity.ClientIDFromContext(r.Context())
	if clientID == "" {
		clientID = "ip_" + identity.IPFromRequest(r)
	}
	return session.Key{ClientID: clientID, SessionID: identity.SessionIDFromContext(r.Context())}
}

// turnErrorStatus maps a service error to an HTTP status and client message.
func turnErrorStatus(err error) (int, string) {
	var invalid *coach.ValidationError
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest, invalid.Error()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
