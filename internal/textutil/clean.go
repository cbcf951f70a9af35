package textutil

import "strings"

// Clean collapses whitespace runs to single spaces, trims the ends and caps
// the result at max runes. Collapsing happens before capping so padding
// cannot push real content past the limit.
func Clean(value string, max int) string {
	collapsed := strings.Join(strings.Fields(value), " ")
	if max <= 0 {
		return ""
	}
	runes := []rune(collapsed)
	if len(runes) <= max {
		return collapsed
	}
	return strings.TrimSpace(string(runes[:max]))
}
