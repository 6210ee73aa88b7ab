package coach

import (
	"fmt"
	"strings"

	"github.com/ashureev/confidence-coach/internal/domain"
)

const (
	contextExchanges    = 3
	contextReplyRunes   = 100
	startOfConversation = "This is the start of our conversation."
)

// Composer builds the prompts sent to the completion service.
type Composer struct {
	policy   *Policy
	preamble string
	examples string
}

// NewComposer renders the static parts of the policy once.
func NewComposer(policy *Policy) *Composer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Composer{
		policy:   policy,
		preamble: renderPreamble(policy),
		examples: renderExamples(policy.Examples),
	}
}

// Policy returns the policy the composer was built from.
func (c *Composer) Policy() *Policy {
	return c.policy
}

// Compose returns the prompt for one user turn.
func (c *Composer) Compose(message string, confidenceLevel int, context string, class Classification) string {
	if class == Vague {
		return c.composeClarify(message, context)
	}

	var b strings.Builder
	b.WriteString(c.preamble)
	b.WriteString("\n")
	b.WriteString(c.examples)
	fmt.Fprintf(&b, "\nConversation context:\n%s\n\n", context)
	fmt.Fprintf(&b, "User Message: %q\n", message)
	fmt.Fprintf(&b, "Assessed confidence level: %d/10\n\n", domain.ClampConfidence(confidenceLevel))
	b.WriteString("Analyze and respond using the CONFIDENCE framework.\n\n")
	b.WriteString("Provide your answer EXACTLY in this format:\n\n")
	fmt.Fprintf(&b, "%s [number between 1-10]\n\n", HeaderConfidence)
	fmt.Fprintf(&b, "%s\n[Your warm, specific response, 150-250 words]\n\n", HeaderMain)
	fmt.Fprintf(&b, "%s\n- Tip 1\n- Tip 2\n- Tip 3\n\n", HeaderTips)
	fmt.Fprintf(&b, "%s\n- Step 1\n- Step 2\n- Step 3\n", HeaderNextSteps)
	return b.String()
}

func (c *Composer) composeClarify(message, context string) string {
	var b strings.Builder
	b.WriteString(c.policy.Persona)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Conversation context:\n%s\n\n", context)
	fmt.Fprintf(&b, "User Message: %q\n\n", message)
	b.WriteString(c.policy.Clarify.Instruction)
	b.WriteString("\n")
	if c.policy.Clarify.Closing != "" {
		b.WriteString(c.policy.Clarify.Closing)
		b.WriteString("\n")
	}
	return b.String()
}

// ComposeAssessment returns a prompt asking for a JSON-only assessment.
func (c *Composer) ComposeAssessment(message string) string {
	var b strings.Builder
	b.WriteString("You are assessing the emotional state of someone asking a confidence coach for help.\n")
	fmt.Fprintf(&b, "Message: %q\n\n", message)
	b.WriteString("Respond with a single JSON object and nothing else, using exactly these keys:\n")
	b.WriteString(`{"confidence_level": <integer 1-10>, "emotional_state": "<short phrase>", ` +
		`"main_challenge": "<short phrase>", "hidden_strengths": "<short phrase>", ` +
		`"best_approach": "<short phrase>"}`)
	b.WriteString("\n")
	return b.String()
}

// Context renders the last few exchanges of a conversation for the prompt.
func Context(turns []domain.Turn) string {
	if len(turns) == 0 {
		return startOfConversation
	}
	if n := contextExchanges * 2; len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, t := range turns {
		if t.IsAssistant() {
			fmt.Fprintf(&b, "Assistant: %s...\n", truncateRunes(t.Content, contextReplyRunes))
			continue
		}
		fmt.Fprintf(&b, "User: %s\n", t.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderPreamble(p *Policy) string {
	var b strings.Builder
	b.WriteString(p.Persona)
	b.WriteString("\n\nCORE PRINCIPLES:\n")
	for i, principle := range p.Principles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, principle)
	}
	if len(p.Style) > 0 {
		b.WriteString("\nRESPONSE STYLE:\n")
		for _, s := range p.Style {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	if len(p.Framework) > 0 {
		b.WriteString("\nCONFIDENCE FRAMEWORK:\n")
		for _, step := range p.Framework {
			fmt.Fprintf(&b, "%s - %s\n", step.Letter, step.Step)
		}
	}
	return b.String()
}

func renderExamples(examples []Example) string {
	var b strings.Builder
	for i, ex := range examples {
		fmt.Fprintf(&b, "Example %d:\nUser: %q\nAssistant:\n", i+1, ex.User)
		fmt.Fprintf(&b, "%s %d\n\n", HeaderConfidence, ex.Confidence)
		fmt.Fprintf(&b, "%s\n%s\n\n", HeaderMain, strings.TrimSpace(ex.Response))
		b.WriteString(HeaderTips + "\n")
		for _, tip := range ex.Tips {
			fmt.Fprintf(&b, "- %s\n", tip)
		}
		b.WriteString("\n" + HeaderNextSteps + "\n")
		for _, step := range ex.Steps {
			fmt.Fprintf(&b, "- %s\n", step)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
