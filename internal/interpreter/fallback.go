package interpreter

import (
	"regexp"
	"strings"

	"github.com/Dee-Codez/BrowseGEN/internal/plan"
)

// Fallback confidence is deliberately low: the keyword parser is a
// safety net for when the oracle is down, not a competing interpreter.
const fallbackConfidence = 0.5

var (
	fullURLRe = regexp.MustCompile(`https?://[^\s]+`)
	goToRe    = regexp.MustCompile(`(?i)(?:go to|navigate to|visit|open)\s+([\w.-]+(?:\.[\w.-]+)+(?:/[^\s]*)?)`)
	domainRe  = regexp.MustCompile(`(?i)\b([\w-]+\.(?:com|org|net|edu|gov|io|co|ai|dev|app|xyz|tech)[^\s]*)\b`)
	withRe    = regexp.MustCompile(`(?i)with\s+["']?([^"']+)["']?`)
)

// Fallback parses a command with keyword heuristics. Anything it does
// not recognize becomes an unknown, non-executable plan.
func Fallback(command string) plan.Plan {
	lower := strings.ToLower(command)

	switch {
	case strings.Contains(lower, "click"):
		return plan.Plan{
			Action:     plan.ActionClick,
			Target:     extractTarget(command, "click"),
			Executable: true,
			Confidence: fallbackConfidence,
		}
	case strings.Contains(lower, "fill"), strings.Contains(lower, "type"):
		keyword := "fill"
		if !strings.Contains(lower, "fill") {
			keyword = "type"
		}
		return plan.Plan{
			Action:     plan.ActionFill,
			Target:     extractTarget(command, keyword),
			Value:      extractValue(command),
			Executable: true,
			Confidence: fallbackConfidence,
		}
	case strings.Contains(lower, "navigate"), strings.Contains(lower, "go to"):
		return plan.Plan{
			Action:     plan.ActionNavigate,
			Value:      extractURL(command),
			Executable: true,
			Confidence: fallbackConfidence,
		}
	default:
		return plan.Plan{
			Action:     plan.ActionUnknown,
			Executable: false,
			Confidence: 0,
		}
	}
}

// extractTarget takes everything after the action keyword, minus the
// trailing "with ..." clause a fill command may carry.
func extractTarget(command, keyword string) string {
	lower := strings.ToLower(command)
	idx := strings.Index(lower, keyword)
	if idx < 0 {
		return ""
	}
	target := strings.TrimSpace(command[idx+len(keyword):])
	if m := withRe.FindStringIndex(target); m != nil {
		target = strings.TrimSpace(target[:m[0]])
	}
	return target
}

func extractValue(command string) string {
	if m := withRe.FindStringSubmatch(command); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// extractURL tries progressively looser patterns: a protocol-qualified
// URL, then a domain after a "go to"-style phrase, then any bare token
// that looks like a domain with a known TLD.
func extractURL(command string) string {
	if m := fullURLRe.FindString(command); m != "" {
		return m
	}
	if m := goToRe.FindStringSubmatch(command); m != nil {
		return m[1]
	}
	if m := domainRe.FindStringSubmatch(command); m != nil {
		return m[1]
	}
	return ""
}
