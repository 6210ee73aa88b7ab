package coach

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed policy.yaml
var defaultPolicy []byte

// ErrInvalidPolicy is returned when a policy document is missing required parts.
var ErrInvalidPolicy = errors.New("invalid coaching policy")

// Policy is the coaching policy that drives prompt composition.
type Policy struct {
	Persona    string          `yaml:"persona"`
	Principles []string        `yaml:"principles"`
	Style      []string        `yaml:"style"`
	Framework  []FrameworkStep `yaml:"framework"`
	Examples   []Example       `yaml:"examples"`
	Clarify    Clarify         `yaml:"clarify"`
	Ladder     []LadderTier    `yaml:"ladder"`
	Boosters   []Booster       `yaml:"boosters"`
}

// FrameworkStep is one letter of the coaching framework acronym.
type FrameworkStep struct {
	Letter string `yaml:"letter"`
	Step   string `yaml:"step"`
}

// Example is a worked few-shot exchange.
type Example struct {
	User       string   `yaml:"user"`
	Confidence int      `yaml:"confidence"`
	Response   string   `yaml:"response"`
	Tips       []string `yaml:"tips"`
	Steps      []string `yaml:"steps"`
}

// Clarify holds the wording used for vague input.
type Clarify struct {
	Instruction string `yaml:"instruction"`
	Closing     string `yaml:"closing"`
}

// LadderTier maps keywords to a confidence level and emotional state.
type LadderTier struct {
	Level    int      `yaml:"level"`
	State    string   `yaml:"state"`
	Keywords []string `yaml:"keywords"`
}

// Booster is a canned quick-boost message.
type Booster struct {
	Kind  string `yaml:"kind" json:"kind"`
	Label string `yaml:"label" json:"label"`
	Text  string `yaml:"text" json:"text"`
}

// DefaultPolicy returns the embedded policy. It panics only if the embedded
// document is broken, which the package tests rule out.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicy)
	if err != nil {
		panic(fmt.Sprintf("embedded policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file from path. An empty path yields the embedded policy.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return ParsePolicy(defaultPolicy)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy %s: %w", path, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy decodes and validates a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	for i := range p.Ladder {
		for j, kw := range p.Ladder[i].Keywords {
			p.Ladder[i].Keywords[j] = strings.ToLower(kw)
		}
	}
	return &p, nil
}

// Validate checks that the policy can produce every prompt kind.
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Persona) == "" {
		return fmt.Errorf("%w: persona is required", ErrInvalidPolicy)
	}
	if len(p.Principles) == 0 {
		return fmt.Errorf("%w: at least one principle is required", ErrInvalidPolicy)
	}
	if strings.TrimSpace(p.Clarify.Instruction) == "" {
		return fmt.Errorf("%w: clarify.instruction is required", ErrInvalidPolicy)
	}
	for _, tier := range p.Ladder {
		if tier.Level < 1 || tier.Level > 10 {
			return fmt.Errorf("%w: ladder level %d out of range", ErrInvalidPolicy, tier.Level)
		}
	}
	return nil
}
