package tools

import "strings"

// emailsMatch compares two email addresses case-insensitively.
func emailsMatch(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
