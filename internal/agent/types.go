// Package agent runs coaching turns and exposes them over HTTP and WebSocket.
package agent

import (
	"github.com/ashureev/confidence-coach/internal/coach"
	"github.com/ashureev/confidence-coach/internal/domain"
	"github.com/ashureev/confidence-coach/internal/session"
)

// ChatRequest is the body of POST /api/coach/chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// TurnState tracks where a turn is in its lifecycle.
type TurnState string

const (
	StateIdle               TurnState = "idle"
	StateAwaitingCompletion TurnState = "awaiting_completion"
	StateDone               TurnState = "done"
	StateFailed             TurnState = "failed"
)

// TurnResult is the outcome of one SubmitTurn call.
type TurnResult struct {
	Reply          domain.CoachingReply
	Assessment     *domain.Assessment
	Classification coach.Classification
	Report         coach.Report
	Fallback       bool
	State          TurnState
	LedgerID       string
}

// wsFrame is an inbound WebSocket frame.
type wsFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

// wsReply is an outbound WebSocket frame. Only the field matching Type is set.
type wsReply struct {
	Type     string                `json:"type"`
	Reply    *domain.CoachingReply `json:"reply,omitempty"`
	Summary  *session.Summary      `json:"summary,omitempty"`
	Boosters []coach.Booster       `json:"boosters,omitempty"`
	Error    string                `json:"error,omitempty"`
}
