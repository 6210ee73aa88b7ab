package domain

// Assessment is the analytic read of a single user message.
type Assessment struct {
	ConfidenceLevel int    `json:"confidence_level"`
	EmotionalState  string `json:"emotional_state"`
	MainChallenge   string `json:"main_challenge"`
	HiddenStrengths string `json:"hidden_strengths"`
	BestApproach    string `json:"best_approach"`
}

// DefaultAssessment is used whenever an assessment cannot be obtained.
func DefaultAssessment() Assessment {
	return Assessment{
		ConfidenceLevel: DefaultConfidence,
		EmotionalState:  "uncertain",
		MainChallenge:   "general confidence",
		HiddenStrengths: "resilience and self-awareness",
		BestApproach:    "supportive encouragement",
	}
}
