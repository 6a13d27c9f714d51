package identity

import "strings"

// NormalizeControlNumber trims surrounding whitespace and upper-cases letters.
// Control numbers are mostly digits ("21940001"); some campuses prefix a letter.
func NormalizeControlNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// NormalizeName collapses internal whitespace runs in a display name.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
