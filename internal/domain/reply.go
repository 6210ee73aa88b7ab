// Package domain contains core domain types for the coaching service.
package domain

// Tone describes the emotional register of a coaching reply.
type Tone string

const (
	ToneSupportive  Tone = "supportive"
	ToneEncouraging Tone = "encouraging"
	ToneEmpowering  Tone = "empowering"
	ToneGentle      Tone = "gentle"
	ToneEnergetic   Tone = "energetic"
)

const (
	// MinConfidence and MaxConfidence bound every recorded confidence level.
	MinConfidence = 1
	MaxConfidence = 10
	// DefaultConfidence is used whenever no level can be derived.
	DefaultConfidence = 5

	// MaxListItems caps both the tips and the next steps of a reply.
	MaxListItems = 3

	motivationBoost = 2
)

// CoachingReply is the structured record handed to the display surface.
// Build it with NewCoachingReply so the invariants hold.
type CoachingReply struct {
	Narrative       string   `json:"response"`
	Tips            []string `json:"confidence_tips"`
	NextSteps       []string `json:"next_steps"`
	ConfidenceLevel int      `json:"confidence_level"`
	MotivationScore int      `json:"motivation_score"`
	Tone            Tone     `json:"emotional_tone"`
}

// NewCoachingReply clamps the level, truncates both lists to MaxListItems and
// derives the motivation score.
func NewCoachingReply(narrative string, tips, nextSteps []string, confidenceLevel int, tone Tone) CoachingReply {
	level := ClampConfidence(confidenceLevel)
	return CoachingReply{
		Narrative:       narrative,
		Tips:            truncate(tips, MaxListItems),
		NextSteps:       truncate(nextSteps, MaxListItems),
		ConfidenceLevel: level,
		MotivationScore: MotivationFor(level),
		Tone:            tone,
	}
}

// WithConfidence returns a copy of r carrying a different confidence level.
func (r CoachingReply) WithConfidence(level int) CoachingReply {
	return NewCoachingReply(r.Narrative, r.Tips, r.NextSteps, level, r.Tone)
}

// ClampConfidence bounds level to [MinConfidence, MaxConfidence].
func ClampConfidence(level int) int {
	if level < MinConfidence {
		return MinConfidence
	}
	if level > MaxConfidence {
		return MaxConfidence
	}
	return level
}

// MotivationFor returns min(level+2, 10) for an already clamped level.
func MotivationFor(level int) int {
	return min(level+motivationBoost, MaxConfidence)
}

const fallbackNarrative = "I believe in your ability to overcome any challenge! " +
	"Sometimes the strongest people face the toughest moments, but that's exactly what makes you resilient. " +
	"What's one small step you can take today toward feeling more confident?"

// FallbackNarrative is the narrative used when nothing better is available.
func FallbackNarrative() string {
	return fallbackNarrative
}

// FallbackReply is served when the completion service cannot be reached.
func FallbackReply() CoachingReply {
	return NewCoachingReply(
		fallbackNarrative,
		[]string{
			"You are stronger than you think",
			"Every expert was once a beginner",
			"Your worth isn't determined by perfection",
		},
		[]string{
			"Take one small action",
			"Practice self-kindness",
			"Focus on growth, not perfection",
		},
		DefaultConfidence,
		ToneSupportive,
	)
}

func truncate(items []string, n int) []string {
	if len(items) > n {
		items = items[:n]
	}
	out := make([]string, len(items))
	copy(out, items)
	return out
}
