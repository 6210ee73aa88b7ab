package session

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/confidence-coach/internal/domain"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func ledgerWithLevels(levels ...int) *Ledger {
	l := NewLedger(newClock().Now)
	for _, lvl := range levels {
		l.Append(domain.RoleUser, "hello", nil)
		l.Append(domain.RoleAssistant, "reply", &lvl)
	}
	return l
}

func TestLedger_EmptySummary(t *testing.T) {
	s := NewLedger(nil).Summary()

	assert.Equal(t, 0, s.TotalMessages)
	assert.Equal(t, 5.0, s.AverageConfidence)
	assert.Equal(t, TrendStable, s.ConfidenceTrend)
	assert.Equal(t, 5, s.LatestConfidence)
	assert.Equal(t, []int{5, 6}, s.ConfidenceHistory)
}

func TestLedger_Trend(t *testing.T) {
	tests := []struct {
		name      string
		levels    []int
		wantAvg   float64
		wantTrend string
	}{
		{"rising", []int{4, 5, 9}, 6.0, TrendImproving},
		{"flat", []int{7, 7}, 7.0, TrendStable},
		{"falling is still stable", []int{9, 3}, 6.0, TrendStable},
		{"single", []int{8}, 8.0, TrendStable},
		{"rounded to one decimal", []int{1, 2, 2}, 1.7, TrendImproving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ledgerWithLevels(tt.levels...).Summary()
			assert.Equal(t, tt.wantAvg, s.AverageConfidence)
			assert.Equal(t, tt.wantTrend, s.ConfidenceTrend)
			assert.Equal(t, tt.levels[len(tt.levels)-1], s.LatestConfidence)
			assert.Equal(t, 2*len(tt.levels), s.TotalMessages)
		})
	}
}

func TestLedger_ChartHistory(t *testing.T) {
	assert.Equal(t, []int{5, 6}, ledgerWithLevels(9).ChartHistory())
	assert.Equal(t, []int{2, 3}, ledgerWithLevels(2, 3).ChartHistory())

	levels := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 1, 2}
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 1, 2}, ledgerWithLevels(levels...).ChartHistory())
}

func TestLedger_ClampsAndIgnoresUserConfidence(t *testing.T) {
	l := NewLedger(nil)
	high, low, user := 14, -2, 3

	l.Append(domain.RoleUser, "u", &user)
	a1 := l.Append(domain.RoleAssistant, "a", &high)
	a2 := l.Append(domain.RoleAssistant, "b", &low)

	require.NotNil(t, a1.ConfidenceLevel)
	assert.Equal(t, 10, *a1.ConfidenceLevel)
	assert.Equal(t, 1, *a2.ConfidenceLevel)
	assert.Nil(t, l.Turns()[0].ConfidenceLevel)
	assert.Equal(t, 5.5, l.Summary().AverageConfidence)
}

func TestLedger_AppendExchangeOrderAndDuration(t *testing.T) {
	clock := newClock()
	l := NewLedger(clock.Now)
	userAt := clock.Now()
	clock.Advance(1*time.Hour + 2*time.Minute + 3*time.Second)

	u, a := l.AppendExchange(domain.UserTurn{Content: "I froze in the meeting", Timestamp: userAt}, domain.FallbackReply())

	turns := l.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, u, turns[0])
	assert.Equal(t, a, turns[1])
	assert.Equal(t, userAt, turns[0].Timestamp)
	assert.Equal(t, "1:02:03", l.Summary().Duration)
}

func TestLedger_TurnsIsACopy(t *testing.T) {
	l := ledgerWithLevels(6)
	turns := l.Turns()
	turns[0].Content = "mutated"

	assert.Equal(t, "hello", l.Turns()[0].Content)
}

func TestLedger_Reset(t *testing.T) {
	clock := newClock()
	l := NewLedger(clock.Now)
	lvl := 8
	l.Append(domain.RoleAssistant, "a", &lvl)
	oldID := l.ID()
	clock.Advance(time.Minute)

	l.Reset()

	assert.NotEqual(t, oldID, l.ID())
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, clock.Now(), l.StartedAt())
	assert.Equal(t, "0:00:00", l.Summary().Duration)
	assert.Equal(t, 5, l.LatestConfidence())
}

func TestLedger_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("one exchange round trip", prop.ForAll(
		func(level int) bool {
			l := NewLedger(nil)
			l.Append(domain.RoleUser, "message", nil)
			l.Append(domain.RoleAssistant, "reply", &level)
			s := l.Summary()
			return s.TotalMessages == 2 && s.AverageConfidence == float64(level)
		},
		gen.IntRange(1, 10),
	))

	properties.Property("chart history is bounded and in range", prop.ForAll(
		func(levels []int) bool {
			h := ledgerWithLevels(levels...).ChartHistory()
			if len(h) < 2 || len(h) > 10 {
				return false
			}
			for _, v := range h {
				if v < 1 || v > 10 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(-5, 20)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
