package coach

import "strings"

// Guidance categories for note analysis.
const (
	GuidancePositive = "positive"
	GuidanceWarning  = "warning"
	GuidanceAction   = "action"
	GuidanceNeutral  = "neutral"
)

// classifyGuidance buckets a coaching reply by keyword presence. Best-effort
// and phrasing-sensitive; the category drives UI styling only, never logic.
func classifyGuidance(text string) string {
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, "strong", "buying signal", "great sign", "positive"):
		return GuidancePositive
	case containsAny(lower, "red flag", "risk", "careful", "warning"):
		return GuidanceWarning
	case containsAny(lower, "ask", "quantify", "push", "dig deeper"):
		return GuidanceAction
	default:
		return GuidanceNeutral
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
