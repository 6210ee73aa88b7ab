package coach

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ashureev/confidence-coach/internal/completion"
	"github.com/ashureev/confidence-coach/internal/domain"
)

var (
	jsonFenceRe   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	standaloneInt = regexp.MustCompile(`\b\d+\b`)
)

// Ladder is a compiled keyword ladder used when no number is available.
type Ladder []ladderTier

type ladderTier struct {
	level int
	state string
	re    *regexp.Regexp
}

// NewLadder compiles tiers into whole-word matchers, preserving order.
func NewLadder(tiers []LadderTier) Ladder {
	out := make(Ladder, 0, len(tiers))
	for _, t := range tiers {
		if len(t.Keywords) == 0 {
			continue
		}
		quoted := make([]string, len(t.Keywords))
		for i, kw := range t.Keywords {
			quoted[i] = regexp.QuoteMeta(strings.ToLower(kw))
		}
		out = append(out, ladderTier{
			level: t.Level,
			state: t.State,
			re:    regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
	return out
}

// match returns the first tier whose keywords appear in text.
func (l Ladder) match(text string) (ladderTier, bool) {
	lower := strings.ToLower(apostrophes.Replace(text))
	for _, t := range l {
		if t.re.MatchString(lower) {
			return t, true
		}
	}
	return ladderTier{}, false
}

// Assessor runs the separate assessment call.
type Assessor struct {
	completer completion.Completer
	composer  *Composer
	ladder    Ladder
}

// NewAssessor creates an Assessor using composer's policy ladder.
func NewAssessor(completer completion.Completer, composer *Composer) *Assessor {
	return &Assessor{
		completer: completer,
		composer:  composer,
		ladder:    NewLadder(composer.Policy().Ladder),
	}
}

// Assess asks the completion service for an assessment of message. Any
// completion failure yields the default assessment.
func (a *Assessor) Assess(ctx context.Context, message string) domain.Assessment {
	prompt := a.composer.ComposeAssessment(message)

	var raw string
	var err error
	if sc, ok := a.completer.(completion.StructuredCompleter); ok {
		raw, err = sc.CompleteJSON(ctx, prompt)
	} else {
		raw, err = a.completer.Complete(ctx, prompt)
	}
	if err != nil {
		slog.Warn("assessment call failed, using default", "error", err)
		return domain.DefaultAssessment()
	}
	return ParseAssessment(raw, a.ladder)
}

// ParseAssessment extracts an assessment from raw completion text. Valid JSON
// objects are read field by field. Anything else goes through the number and
// keyword heuristics.
func ParseAssessment(raw string, ladder Ladder) domain.Assessment {
	text := strings.TrimSpace(raw)
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}

	if strings.HasPrefix(text, "{") && gjson.Valid(text) {
		return fromJSON(text, ladder)
	}
	return fromText(text, ladder)
}

func fromJSON(text string, ladder Ladder) domain.Assessment {
	a := domain.DefaultAssessment()
	fields := gjson.GetMany(text, "confidence_level", "emotional_state", "main_challenge", "hidden_strengths", "best_approach")

	switch lvl := fields[0]; {
	case lvl.Type == gjson.Number:
		a.ConfidenceLevel = domain.ClampConfidence(int(lvl.Int()))
	case lvl.Type == gjson.String:
		if n, err := strconv.Atoi(strings.TrimSpace(lvl.Str)); err == nil {
			a.ConfidenceLevel = domain.ClampConfidence(n)
		}
	}
	setIfPresent(&a.EmotionalState, fields[1])
	setIfPresent(&a.MainChallenge, fields[2])
	setIfPresent(&a.HiddenStrengths, fields[3])
	setIfPresent(&a.BestApproach, fields[4])

	if !fields[1].Exists() {
		if tier, ok := ladder.match(text); ok {
			a.EmotionalState = tier.state
		}
	}
	return a
}

func setIfPresent(dst *string, r gjson.Result) {
	if s := strings.TrimSpace(r.String()); s != "" {
		*dst = s
	}
}

func fromText(text string, ladder Ladder) domain.Assessment {
	a := domain.DefaultAssessment()
	tier, tierFound := ladder.match(text)
	if tierFound && tier.state != "" {
		a.EmotionalState = tier.state
	}

	for _, m := range standaloneInt.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err == nil && n >= domain.MinConfidence && n <= domain.MaxConfidence {
			a.ConfidenceLevel = n
			return a
		}
	}
	if tierFound {
		a.ConfidenceLevel = domain.ClampConfidence(tier.level)
	}
	return a
}
