// Package sanitize scrubs client-facing messages of details that only belong
// in server-side logs.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	uuidPattern  = regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	framePattern = regexp.MustCompile(`\S+\.(go|java|py|js|ts):\d+`)
	gorPattern   = regexp.MustCompile(`goroutine \d+ \[[^\]]*\]:?`)
	// any case; a bare verb is not enough, so prose like "failed to update" survives
	sqlPattern   = regexp.MustCompile(`(?is)\b(?:SELECT\s+(?:[\d*]|.*?\bFROM\b)|INSERT\s+INTO\b|UPDATE\s+\S+\s+SET\b|DELETE\s+FROM\b|WITH\s+\S+\s+AS\s*\().*`)
	spacePattern = regexp.MustCompile(`\s{2,}`)
)

const (
	idPlaceholder    = "[id]"
	emailPlaceholder = "[email]"
)

// Message strips identifiers, e-mail addresses, file:line and stack
// fragments, and raw query text. The result is trimmed; an empty result
// becomes fallback.
func Message(msg, fallback string) string {
	out := sqlPattern.ReplaceAllString(msg, "")
	out = gorPattern.ReplaceAllString(out, "")
	out = framePattern.ReplaceAllString(out, "")
	out = uuidPattern.ReplaceAllString(out, idPlaceholder)
	out = emailPattern.ReplaceAllString(out, emailPlaceholder)
	out = spacePattern.ReplaceAllString(out, " ")
	out = strings.TrimRight(strings.TrimSpace(out), ":;,")
	if out == "" {
		return fallback
	}
	return out
}
