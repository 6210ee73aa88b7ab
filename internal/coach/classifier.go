package coach

import (
	"strings"
)

// Classification is the result of routing a user message.
type Classification int

const (
	Normal Classification = iota
	Vague
)

func (c Classification) String() string {
	if c == Vague {
		return "vague"
	}
	return "normal"
}

const minSpecificWords = 5

var vagueMarkers = []string{"don't know", "lost", "confused"}

var apostrophes = strings.NewReplacer("’", "'", "‘", "'")

// Classify marks a message Vague when it is too short to act on or signals
// the user is unsure. Everything else is Normal.
func Classify(message string) Classification {
	if len(strings.Fields(message)) < minSpecificWords {
		return Vague
	}
	lower := strings.ToLower(apostrophes.Replace(message))
	for _, marker := range vagueMarkers {
		if strings.Contains(lower, marker) {
			return Vague
		}
	}
	return Normal
}
