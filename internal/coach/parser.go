package coach

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/ashureev/confidence-coach/internal/domain"
)

// tightNumberRe takes "1.First" as a bullet but not "3.5 hours".
var (
	confidenceRe  = regexp.MustCompile(`(?i)confidence[\s*_]*level[\s*_]*[:=\-–]?[\s*_]*(-?\d+)`)
	bulletRe      = regexp.MustCompile(`^\s*(?:[-•*]|\d+\.)\s+(.*\S)`)
	tightNumberRe = regexp.MustCompile(`^\s*\d+\.([^\d\s](?:.*\S)?)`)
)

const (
	defaultTip  = "You have more strength than you realize"
	defaultStep = "Take one small step today"

	// halfSplitThreshold is the bullet count above which unlabeled bullets
	// are split in half between tips and next steps.
	halfSplitThreshold = 5
)

// Report describes how well a raw completion followed the requested format.
type Report struct {
	Missing            []string `json:"missing,omitempty"`
	Bullets            int      `json:"bullets"`
	ConfidenceFound    bool     `json:"confidence_found"`
	FallbackNarrative  bool     `json:"fallback_narrative"`
	DefaultedTips      bool     `json:"defaulted_tips"`
	DefaultedNextSteps bool     `json:"defaulted_next_steps"`
}

// Conforms reports whether every expected section marker was present.
func (r Report) Conforms() bool {
	return len(r.Missing) == 0
}

type lineKind int

const (
	lineText lineKind = iota
	lineBullet
	lineHeader
	lineConfidence
)

type parsedLine struct {
	kind    lineKind
	raw     string
	text    string // bullet content or inline header text
	section section
}

type bullet struct {
	text    string
	section section
}

// Parse turns raw completion text into a reply. It never fails.
func Parse(raw string) domain.CoachingReply {
	reply, _ := ParseWithReport(raw)
	return reply
}

// ParseWithReport is Parse plus a conformance report.
func ParseWithReport(raw string) (domain.CoachingReply, Report) {
	var report Report

	level, found := extractConfidence(raw)
	report.ConfidenceFound = found
	if !found {
		report.Missing = append(report.Missing, HeaderConfidence)
	}

	lines := classifyLines(raw)
	seen := map[section]bool{}
	var bullets []bullet
	for _, l := range lines {
		switch l.kind {
		case lineHeader:
			seen[l.section] = true
		case lineBullet:
			bullets = append(bullets, bullet{text: l.text, section: l.section})
		}
	}
	for _, s := range []struct {
		sec    section
		header string
	}{{sectionMain, HeaderMain}, {sectionTips, HeaderTips}, {sectionSteps, HeaderNextSteps}} {
		if !seen[s.sec] {
			report.Missing = append(report.Missing, s.header)
		}
	}
	report.Bullets = len(bullets)

	narrative := extractNarrative(lines, seen)
	if narrative == "" {
		narrative = domain.FallbackNarrative()
		report.FallbackNarrative = true
	}

	tips, steps := splitBullets(bullets, seen[sectionTips] && seen[sectionSteps])
	if len(tips) == 0 {
		tips = []string{defaultTip}
		report.DefaultedTips = true
	}
	if len(steps) == 0 {
		steps = []string{defaultStep}
		report.DefaultedNextSteps = true
	}

	return domain.NewCoachingReply(narrative, tips, steps, level, domain.ToneEmpowering), report
}

// ParseClarification parses a reply to a vague message. The questions stay
// in the narrative as written, numbered or not.
func ParseClarification(raw string) (domain.CoachingReply, Report) {
	report := Report{DefaultedTips: true, DefaultedNextSteps: true}

	level, found := extractConfidence(raw)
	report.ConfidenceFound = found

	var parts []string
	for _, l := range classifyLines(raw) {
		if l.kind == lineBullet {
			report.Bullets++
		}
		if l.kind != lineConfidence {
			parts = append(parts, l.raw)
		}
	}
	narrative := strings.TrimSpace(strings.Join(parts, "\n"))
	if narrative == "" {
		narrative = domain.FallbackNarrative()
		report.FallbackNarrative = true
	}

	return domain.NewCoachingReply(narrative, []string{defaultTip}, []string{defaultStep}, level, domain.ToneGentle), report
}

// ConfidenceOf returns the clamped level stated in raw and whether a marker was found.
func ConfidenceOf(raw string) (int, bool) {
	return extractConfidence(raw)
}

func extractConfidence(raw string) (int, bool) {
	m := confidenceRe.FindStringSubmatch(raw)
	if m == nil {
		return domain.DefaultConfidence, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			if strings.HasPrefix(m[1], "-") {
				return domain.MinConfidence, true
			}
			return domain.MaxConfidence, true
		}
		return domain.DefaultConfidence, false
	}
	return domain.ClampConfidence(n), true
}

func classifyLines(raw string) []parsedLine {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	current := sectionNone
	var out []parsedLine
	for _, line := range strings.Split(raw, "\n") {
		text, isBullet := matchBullet(line)
		if isConfidenceLine(line) || (isBullet && isConfidenceLine(text)) {
			out = append(out, parsedLine{kind: lineConfidence, raw: line, section: current})
			continue
		}
		if isBullet {
			out = append(out, parsedLine{kind: lineBullet, raw: line, text: text, section: current})
			continue
		}
		if sec, inline, ok := matchHeader(line); ok {
			current = sec
			out = append(out, parsedLine{kind: lineHeader, raw: line, text: inline, section: sec})
			continue
		}
		out = append(out, parsedLine{kind: lineText, raw: line, section: current})
	}
	return out
}

func matchBullet(line string) (string, bool) {
	if m := bulletRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	if m := tightNumberRe.FindStringSubmatch(line); m != nil {
		return m[1], true
	}
	return "", false
}

func isConfidenceLine(line string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimLeft(line, "#*_ \t")), "confidence level")
}

// matchHeader recognizes lines such as "Main Response:", "**Confidence Tips:**"
// or "## Next Steps", returning any text that follows the colon.
func matchHeader(line string) (section, string, bool) {
	trimmed := strings.TrimLeft(line, "#*_ \t")
	for _, h := range headerLabels {
		if len(trimmed) < len(h.label) || !strings.EqualFold(trimmed[:len(h.label)], h.label) {
			continue
		}
		rest := strings.TrimLeft(trimmed[len(h.label):], "*_ \t")
		if rest == "" {
			return h.section, "", true
		}
		if rest[0] != ':' {
			return sectionNone, "", false
		}
		inline := strings.Trim(rest[1:], "*_ \t")
		return h.section, inline, true
	}
	return sectionNone, "", false
}

func extractNarrative(lines []parsedLine, seen map[section]bool) string {
	var parts []string
	switch {
	case seen[sectionMain]:
		start := 0
		for i, l := range lines {
			if l.kind == lineHeader && l.section == sectionMain {
				start = i
				break
			}
		}
		if lines[start].text != "" {
			parts = append(parts, lines[start].text)
		}
		body := lines[start+1:]
		// Without a later header the main section ends at the first bullet,
		// since those bullets become tips.
		closed := false
		for _, l := range body {
			if l.kind == lineHeader {
				closed = true
				break
			}
		}
		for _, l := range body {
			if l.kind == lineHeader || (!closed && l.kind == lineBullet) {
				break
			}
			if l.kind != lineConfidence {
				parts = append(parts, l.raw)
			}
		}
	case seen[sectionTips] || seen[sectionSteps]:
		for _, l := range lines {
			if l.kind == lineHeader {
				break
			}
			if l.kind != lineConfidence {
				parts = append(parts, l.raw)
			}
		}
	default:
		for _, l := range lines {
			if l.kind == lineBullet {
				break
			}
			if l.kind != lineConfidence {
				parts = append(parts, l.raw)
			}
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func splitBullets(bullets []bullet, labeled bool) (tips, steps []string) {
	if labeled {
		for _, b := range bullets {
			switch b.section {
			case sectionTips:
				tips = append(tips, b.text)
			case sectionSteps:
				steps = append(steps, b.text)
			}
		}
		return tips, steps
	}

	texts := make([]string, len(bullets))
	for i, b := range bullets {
		texts[i] = b.text
	}
	n := len(texts)
	if n > halfSplitThreshold {
		mid := n / 2
		return texts[:mid], texts[mid:]
	}
	cut := min(domain.MaxListItems, n)
	end := min(n, cut+domain.MaxListItems)
	return texts[:cut], texts[cut:end]
}
