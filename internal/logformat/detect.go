// Package logformat classifies raw input streams into the closed set of
// supported line formats: journald JSON export, journald short-precise
// text, and plain syslog text.
package logformat

import (
	"encoding/json"
	"errors"
	"regexp"

	"github.com/gourav-shinde/jlog/internal/model"
)

// MaxPrefixLines bounds how many non-empty lines detection inspects
// before giving up on an input.
const MaxPrefixLines = 5

// ErrUnknownFormat reports that no candidate format matched the input
// prefix. It is fatal for that input.
var ErrUnknownFormat = errors.New("logformat: no known log format matched input prefix")

var (
	// Mon DD HH:MM:SS.ffffff host proc[pid]: msg (microseconds present).
	shortPreciseRegex = regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\.\d{6}\s+\S+\s+\S+?(\[\d+\])?:\s`)

	// Mon DD HH:MM:SS host proc[pid]: msg (no fractional seconds).
	plainSyslogRegex = regexp.MustCompile(`^[A-Z][a-z]{2}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\S+\s+\S+?(\[\d+\])?:\s`)
)

// Journald export fields that mark a JSON object as journal output.
var journalFields = []string{"MESSAGE", "__REALTIME_TIMESTAMP", "PRIORITY", "_SYSTEMD_UNIT", "SYSLOG_IDENTIFIER", "_HOSTNAME"}

// DetectLine classifies a single line, returning FormatUnknown when the
// line matches no candidate.
func DetectLine(line string) model.Format {
	if len(line) == 0 {
		return model.FormatUnknown
	}
	if line[0] == '{' && isJournalJSON(line) {
		return model.FormatJournalJSON
	}
	// Short-precise first: its prefix is a superset of plain syslog.
	if shortPreciseRegex.MatchString(line) {
		return model.FormatJournalShortPrecise
	}
	if plainSyslogRegex.MatchString(line) {
		return model.FormatPlainSyslog
	}
	return model.FormatUnknown
}

// Detect classifies an input from its first non-empty lines. The first
// line that matches any candidate decides the format for the whole
// stream; after MaxPrefixLines non-empty lines without a match the input
// is rejected with ErrUnknownFormat.
func Detect(prefix []string) (model.Format, error) {
	seen := 0
	for _, line := range prefix {
		if line == "" {
			continue
		}
		if f := DetectLine(line); f != model.FormatUnknown {
			return f, nil
		}
		seen++
		if seen >= MaxPrefixLines {
			break
		}
	}
	return model.FormatUnknown, ErrUnknownFormat
}

// Sniffer accumulates prefix lines until a format decision is reached.
// Once decided, the decision is cached for the lifetime of the stream.
type Sniffer struct {
	format  model.Format
	decided bool
	seen    int
}

// Observe feeds one raw line. It returns the decided format and true once
// a decision exists (including on later calls), or an error after the
// prefix budget is exhausted without a match.
func (s *Sniffer) Observe(line string) (model.Format, bool, error) {
	if s.decided {
		return s.format, true, nil
	}
	if line == "" {
		return model.FormatUnknown, false, nil
	}
	if f := DetectLine(line); f != model.FormatUnknown {
		s.format = f
		s.decided = true
		return f, true, nil
	}
	s.seen++
	if s.seen >= MaxPrefixLines {
		return model.FormatUnknown, false, ErrUnknownFormat
	}
	return model.FormatUnknown, false, nil
}

// Format returns the cached decision, if any.
func (s *Sniffer) Format() (model.Format, bool) {
	return s.format, s.decided
}

func isJournalJSON(line string) bool {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return false
	}
	for _, field := range journalFields {
		if _, ok := raw[field]; ok {
			return true
		}
	}
	return false
}
