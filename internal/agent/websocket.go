package agent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/ashureev/confidence-coach/internal/session"
)

const wsWriteTimeout = 10 * time.Second

// WebSocketHandler serves coaching turns over /ws/coach. Frames on one
// connection are handled one at a time.
type WebSocketHandler struct {
	coach          Coach
	rateLimiter    *RateLimiter
	allowedOrigins []string
	isDev          bool
}

// NewWebSocketHandler creates the WebSocket endpoint handler.
func NewWebSocketHandler(c Coach, limiter *RateLimiter, allowedOrigins []string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		coach:          c,
		rateLimiter:    limiter,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := sessionKey(r)
	slog.Info("WebSocket connection request", "client_id", key.ClientID, "session_id", key.SessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "client_id", key.ClientID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "client_id", key.ClientID)
		}
	}()
	ws.SetReadLimit(maxRequestBodySize)

	ctx := withChannel(r.Context(), "chat_ws")
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || errors.Is(err, context.Canceled) {
				slog.Debug("WebSocket closed by client", "client_id", key.ClientID)
			} else {
				slog.Warn("WebSocket read error", "error", err, "client_id", key.ClientID)
			}
			return
		}

		var reply wsReply
		if typ != websocket.MessageText {
			reply = errorFrame("binary frames are not supported")
		} else {
			var frame wsFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				reply = errorFrame("invalid frame")
			} else {
				reply = h.handleFrame(ctx, key, frame)
			}
		}

		if err := h.write(ctx, ws, reply); err != nil {
			slog.Debug("WebSocket write error", "error", err, "client_id", key.ClientID)
			return
		}
	}
}

func (h *WebSocketHandler) handleFrame(ctx context.Context, key session.Key, frame wsFrame) wsReply {
	switch frame.Type {
	case "message":
		if h.rateLimiter != nil && !h.rateLimiter.Allow(key.ClientID) {
			return errorFrame("rate limit exceeded")
		}
		result, err := h.coach.SubmitTurn(ctx, key, frame.Content)
		if err != nil {
			_, msg := turnErrorStatus(err)
			return errorFrame(msg)
		}
		return wsReply{Type: "reply", Reply: &result.Reply}
	case "summary":
		summary, err := h.coach.Summary(ctx, key)
		if err != nil {
			_, msg := turnErrorStatus(err)
			return errorFrame(msg)
		}
		return wsReply{Type: "summary", Summary: &summary}
	case "reset":
		summary, err := h.coach.Reset(ctx, key)
		if err != nil {
			_, msg := turnErrorStatus(err)
			return errorFrame(msg)
		}
		return wsReply{Type: "reset", Summary: &summary}
	case "boosters":
		return wsReply{Type: "boosters", Boosters: h.coach.Boosters()}
	default:
		return errorFrame("unknown frame type")
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, reply wsReply) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, ws, reply)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func errorFrame(msg string) wsReply {
	return wsReply{Type: "error", Error: msg}
}
