package harvest

import "strings"

// Normalize canonicalizes a free-text query: lowercase, runs of whitespace
// collapsed to one space, ends trimmed.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Collapse trims query and collapses runs of whitespace, keeping case. Remote
// query languages treat uppercase boolean operators specially.
func Collapse(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
