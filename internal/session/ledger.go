// Package session keeps the per-conversation ledgers and their analytics.
package session

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/confidence-coach/internal/domain"
)

const (
	TrendImproving = "improving"
	TrendStable    = "stable"

	chartWindow = 10
)

// chartPlaceholder is shown when there is not enough history to draw a line.
var chartPlaceholder = []int{5, 6}

// Summary is the derived view of a ledger.
type Summary struct {
	LedgerID          string    `json:"ledger_id"`
	TotalMessages     int       `json:"total_messages"`
	AverageConfidence float64   `json:"average_confidence"`
	ConfidenceTrend   string    `json:"confidence_trend"`
	LatestConfidence  int       `json:"latest_confidence"`
	Duration          string    `json:"session_duration"`
	ConfidenceHistory []int     `json:"confidence_history"`
	StartedAt         time.Time `json:"started_at"`
}

// Ledger is the append-only record of one conversation. It is not safe for
// concurrent use; the Registry serializes access per session.
type Ledger struct {
	id        string
	startedAt time.Time
	turns     []domain.Turn
	levels    []int
	now       func() time.Time
}

// NewLedger starts an empty ledger. A nil clock means time.Now.
func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	l := &Ledger{now: now}
	l.Reset()
	return l
}

// ID identifies the current ledger lifetime. Reset assigns a new one.
func (l *Ledger) ID() string {
	return l.id
}

// StartedAt is when the current ledger lifetime began.
func (l *Ledger) StartedAt() time.Time {
	return l.startedAt
}

// Append records one turn. Confidence is kept for assistant turns only and is
// clamped to the valid range.
func (l *Ledger) Append(role domain.Role, content string, confidence *int) domain.Turn {
	return l.appendAt(role, content, confidence, l.now())
}

// AppendExchange records a user turn and its reply in one step.
func (l *Ledger) AppendExchange(user domain.UserTurn, reply domain.CoachingReply) (domain.Turn, domain.Turn) {
	ts := user.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}
	level := reply.ConfidenceLevel
	u := l.appendAt(domain.RoleUser, user.Content, nil, ts)
	a := l.appendAt(domain.RoleAssistant, reply.Narrative, &level, l.now())
	return u, a
}

func (l *Ledger) appendAt(role domain.Role, content string, confidence *int, ts time.Time) domain.Turn {
	turn := domain.Turn{Role: role, Content: content, Timestamp: ts}
	if role == domain.RoleAssistant && confidence != nil {
		level := domain.ClampConfidence(*confidence)
		turn.ConfidenceLevel = &level
		l.levels = append(l.levels, level)
	}
	l.turns = append(l.turns, turn)
	return turn
}

// Len returns the number of recorded turns.
func (l *Ledger) Len() int {
	return len(l.turns)
}

// Turns returns a copy of the recorded turns.
func (l *Ledger) Turns() []domain.Turn {
	out := make([]domain.Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// LatestConfidence is the most recent assistant level, or 5.
func (l *Ledger) LatestConfidence() int {
	if len(l.levels) == 0 {
		return domain.DefaultConfidence
	}
	return l.levels[len(l.levels)-1]
}

// ChartHistory returns the last 10 assistant levels, oldest first. With fewer
// than two levels it returns the fixed placeholder [5, 6].
func (l *Ledger) ChartHistory() []int {
	if len(l.levels) < 2 {
		return append([]int(nil), chartPlaceholder...)
	}
	start := max(0, len(l.levels)-chartWindow)
	return append([]int(nil), l.levels[start:]...)
}

// Summary derives the session analytics.
func (l *Ledger) Summary() Summary {
	s := Summary{
		LedgerID:          l.id,
		TotalMessages:     len(l.turns),
		AverageConfidence: float64(domain.DefaultConfidence),
		ConfidenceTrend:   TrendStable,
		LatestConfidence:  l.LatestConfidence(),
		Duration:          formatDuration(l.now().Sub(l.startedAt)),
		ConfidenceHistory: l.ChartHistory(),
		StartedAt:         l.startedAt,
	}
	if n := len(l.levels); n > 0 {
		sum := 0
		for _, v := range l.levels {
			sum += v
		}
		s.AverageConfidence = math.Round(float64(sum)/float64(n)*10) / 10
		// Only two buckets: a drop still reads as stable.
		if l.levels[n-1] > l.levels[0] {
			s.ConfidenceTrend = TrendImproving
		}
	}
	return s
}

// Reset discards all turns and starts a new ledger lifetime.
func (l *Ledger) Reset() {
	l.id = uuid.NewString()
	l.startedAt = l.now()
	l.turns = nil
	l.levels = nil
}

// formatDuration renders d as H:MM:SS.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
