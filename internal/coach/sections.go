// Package coach holds the pure coaching core: input classification, prompt
// composition, reply parsing and assessment extraction.
package coach

// Section headers shared by the composer (which asks for them) and the parser
// (which looks for them).
const (
	HeaderConfidence = "Confidence Level:"
	HeaderMain       = "Main Response:"
	HeaderTips       = "Confidence Tips:"
	HeaderNextSteps  = "Next Steps:"
)

// section identifies which part of a reply a line belongs to.
type section int

const (
	sectionNone section = iota
	sectionMain
	sectionTips
	sectionSteps
)

func (s section) String() string {
	switch s {
	case sectionMain:
		return "main_response"
	case sectionTips:
		return "confidence_tips"
	case sectionSteps:
		return "next_steps"
	default:
		return "none"
	}
}

// headerLabels maps lowercase header prefixes to the section they open.
// Order matters: "confidence tips" must be checked before "tips".
var headerLabels = []struct {
	label   string
	section section
}{
	{"main response", sectionMain},
	{"confidence tips", sectionTips},
	{"tips", sectionTips},
	{"next steps", sectionSteps},
}
