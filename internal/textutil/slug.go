package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Slug converts a guild or channel name into a filesystem-safe path segment.
// Characters outside [A-Za-z0-9._-] become underscores, runs of underscores
// collapse, and leading/trailing underscores are trimmed. Empty input (or
// input that slugs away entirely) yields "unknown".
func Slug(value string) string {
	value = strings.TrimSpace(norm.NFKC.String(value))
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	lastUnderscore := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			// Literal underscores and every other character collapse into
			// a single separator.
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
