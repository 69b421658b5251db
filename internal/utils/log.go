package utils

import "strings"

// TruncateForLog folds s onto a single line and shortens it to limit runes,
// appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
