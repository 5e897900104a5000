package domain

import "strings"

// catastrophicPatterns are the substrings no command may contain, approved
// or not. The list stays tiny: it is a last-resort block for commands that
// destroy a machine, not a general policy engine.
var catastrophicPatterns = []string{
	"rm -rf /",
	"format c:",
	`rd /s /q c:\`,
}

// BlockedCommand reports whether a command text hits the fail-safe denylist
// and returns the matched pattern. Matching is case-insensitive and
// whitespace runs are collapsed first, so "RM  -RF   /" does not slip past.
func BlockedCommand(command string) (string, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(command), " "))
	for _, pattern := range catastrophicPatterns {
		if strings.Contains(normalized, pattern) {
			return pattern, true
		}
	}
	return "", false
}
