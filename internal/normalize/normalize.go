// Package normalize canonicalizes free-text skill, sector and location tokens so
// they can be compared with plain substring and equality checks.
package normalize

import (
	"regexp"
	"strings"
)

var (
	reDisallowed = regexp.MustCompile(`[^a-z0-9+#.\s]`)
	reSpaces     = regexp.MustCompile(`\s+`)
)

// Text lowercases s, replaces everything outside [a-z0-9+#.] and whitespace with
// a space, collapses whitespace and trims. Tokens like "c++", "c#" and "node.js"
// survive intact.
func Text(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)
	s = reDisallowed.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Lower is the lighter variant used for display fields: lowercase and trim only.
func Lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
