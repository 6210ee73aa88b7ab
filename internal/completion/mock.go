package completion

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
)

// MockCompleter returns deterministic, well-formed completions without any
// network access. It backs COMPLETION_PROVIDER=mock.
type MockCompleter struct{}

// NewMockCompleter creates a MockCompleter.
func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

// Complete implements Completer.
func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.Contains(prompt, "clarifying questions") {
		return "I'd love to understand a bit more before offering ideas. " +
			"What situation is on your mind right now? " +
			"And how has it been making you feel about yourself?", nil
	}
	level := mockLevel(prompt)
	return fmt.Sprintf(`Confidence Level: %d

Main Response:
Thank you for sharing this. What you are feeling makes sense, and the fact that you are reflecting on it already shows self-awareness.

Confidence Tips:
- Notice one thing you handled well today
- Speak to yourself like you would to a friend
- Remember that progress beats perfection

Next Steps:
- Write down one recent win
- Pick one small action for tomorrow
- Check in with how you feel afterwards
`, level), nil
}

// CompleteJSON implements StructuredCompleter.
func (m *MockCompleter) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf(`{"confidence_level": %d, "emotional_state": "reflective", `+
		`"main_challenge": "self-doubt", "hidden_strengths": "willingness to ask for help", `+
		`"best_approach": "gentle encouragement"}`, mockLevel(prompt)), nil
}

// Name identifies the adapter in logs and health output.
func (m *MockCompleter) Name() string {
	return "mock"
}

// mockLevel maps a prompt to a stable level in [3,8].
func mockLevel(prompt string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(prompt))
	return 3 + int(h.Sum32()%6)
}
