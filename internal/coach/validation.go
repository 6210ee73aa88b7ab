package coach

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/confidence-coach/internal/domain"
)

// DefaultMaxChars is the default cap on a user message, in characters.
const DefaultMaxChars = 1000

// ErrInvalidMessage is matched by every ValidationError via errors.Is.
var ErrInvalidMessage = errors.New("invalid message")

// ValidationError rejects a message before any external call is made.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid message: " + e.Reason
}

// Is lets callers test with errors.Is(err, ErrInvalidMessage).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidMessage
}

// Validator checks inbound messages.
type Validator struct {
	MaxChars int
	Denylist []string
}

// NewValidator normalizes the denylist entries. maxChars <= 0 means DefaultMaxChars.
func NewValidator(maxChars int, denylist []string) Validator {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	var deny []string
	for _, d := range denylist {
		if d = normalizeForDenylist(d); d != "" {
			deny = append(deny, d)
		}
	}
	return Validator{MaxChars: maxChars, Denylist: deny}
}

// Validate trims message and returns the accepted user turn.
func (v Validator) Validate(message string, now time.Time) (domain.UserTurn, error) {
	content := strings.TrimSpace(message)
	if content == "" {
		return domain.UserTurn{}, &ValidationError{Reason: "message is empty"}
	}
	if !utf8.ValidString(content) {
		return domain.UserTurn{}, &ValidationError{Reason: "message is not valid UTF-8"}
	}
	if n := utf8.RuneCountInString(content); n > v.MaxChars {
		return domain.UserTurn{}, &ValidationError{
			Reason: fmt.Sprintf("message is %d characters, limit is %d", n, v.MaxChars),
		}
	}
	normalized := normalizeForDenylist(content)
	for _, d := range v.Denylist {
		if normalized == d {
			return domain.UserTurn{}, &ValidationError{Reason: "message is not specific enough"}
		}
	}
	return domain.UserTurn{Content: content, Timestamp: now}, nil
}

func normalizeForDenylist(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimRight(s, ".!?")
	return strings.Join(strings.Fields(s), " ")
}
