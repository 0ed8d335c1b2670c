// Package signature reduces log messages to stable templates so that
// near-identical lines (same error, different IPs or PIDs) group under
// one key for counting and anomaly detection.
package signature

import (
	"regexp"
	"strings"
)

// MaxLength bounds stored signatures so signature maps stay small no
// matter how long the source messages are.
const MaxLength = 200

// Replacement order matters: IPs before port numbers before bare
// integers before hex runs, so that one token class never eats a piece
// of another. Placeholders contain no digits, which keeps Normalize
// idempotent.
var (
	ipv4Regex = regexp.MustCompile(`\b\d{1,3}(?:\.\d{1,3}){3}\b`)
	// At least three colon groups so HH:MM:SS times are left alone.
	ipv6Regex = regexp.MustCompile(`\b(?:[0-9a-fA-F]{1,4}:){3,7}[0-9a-fA-F]{1,4}\b`)
	portRegex = regexp.MustCompile(`\bport \d+`)
	numRegex  = regexp.MustCompile(`\b\d{4,}\b`)
	hexRegex  = regexp.MustCompile(`\b[0-9a-fA-F]{8,}\b`)
)

// Normalize returns the signature for a message. It is a pure function:
// deterministic, idempotent, and total — malformed input at worst comes
// back trimmed and truncated.
func Normalize(message string) string {
	s := strings.TrimSpace(message)
	s = ipv4Regex.ReplaceAllString(s, "<IP>")
	s = ipv6Regex.ReplaceAllString(s, "<IP>")
	s = portRegex.ReplaceAllString(s, "port <PORT>")
	s = numRegex.ReplaceAllString(s, "<NUM>")
	s = hexRegex.ReplaceAllString(s, "<HEX>")
	return truncate(s)
}

func truncate(s string) string {
	if len(s) <= MaxLength {
		return s
	}
	// Cut on a rune boundary so the signature stays valid UTF-8.
	cut := MaxLength
	for cut > 0 && (s[cut]&0xC0) == 0x80 {
		cut--
	}
	return s[:cut]
}
