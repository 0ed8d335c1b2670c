// Package logparse converts raw lines of a detected format into canonical
// log entries.
package logparse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

// ParseError reports a single line that does not match the active
// format's grammar or is missing a required field. It is non-fatal: the
// caller skips the line and counts the failure.
type ParseError struct {
	Format model.Format
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("logparse: %s: %s", e.Format, e.Reason)
}

// yearRolloverWindow is how far in the future a parsed month/day may land
// before the previous year is assumed. Handles tailing across New Year.
const yearRolloverWindow = 72 * time.Hour

// Mon DD HH:MM:SS[.ffffff] host service[pid]: message
var syslogLineRegex = regexp.MustCompile(
	`^([A-Z][a-z]{2})\s+(\d{1,2})\s+(\d{2}):(\d{2}):(\d{2})(?:\.(\d{6}))?\s+(\S+)\s+([^:\[\s]+)(?:\[(\d+)\])?:\s?(.*)$`)

var monthsByName = map[string]time.Month{
	"Jan": time.January, "Feb": time.February, "Mar": time.March,
	"Apr": time.April, "May": time.May, "Jun": time.June,
	"Jul": time.July, "Aug": time.August, "Sep": time.September,
	"Oct": time.October, "Nov": time.November, "Dec": time.December,
}

// journalRecord mirrors the journald JSON export fields this parser
// consumes. All journald export values are strings.
type journalRecord struct {
	RealtimeTimestamp *string `json:"__REALTIME_TIMESTAMP"`
	Hostname          string  `json:"_HOSTNAME"`
	Priority          *string `json:"PRIORITY"`
	SyslogIdentifier  string  `json:"SYSLOG_IDENTIFIER"`
	PID               string  `json:"_PID"`
	SystemdUnit       string  `json:"_SYSTEMD_UNIT"`
	Message           *string `json:"MESSAGE"`
}

// Parse converts one raw line of the given format into a LogEntry.
// Failures are *ParseError values; the parser mutates no shared state.
func Parse(line string, format model.Format) (*model.LogEntry, error) {
	return parseAt(line, format, time.Now().UTC())
}

// parseAt is Parse with an explicit reference time for the year rollover
// heuristic of the text formats.
func parseAt(line string, format model.Format, now time.Time) (*model.LogEntry, error) {
	switch format {
	case model.FormatJournalJSON:
		return parseJournalJSON(line)
	case model.FormatJournalShortPrecise, model.FormatPlainSyslog:
		return parseSyslogText(line, format, now)
	default:
		return nil, &ParseError{Format: format, Reason: "unsupported format"}
	}
}

func parseJournalJSON(line string) (*model.LogEntry, error) {
	var rec journalRecord
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		return nil, &ParseError{Format: model.FormatJournalJSON, Reason: "invalid JSON object"}
	}
	if rec.Message == nil {
		return nil, &ParseError{Format: model.FormatJournalJSON, Reason: "missing MESSAGE field"}
	}
	if rec.RealtimeTimestamp == nil {
		// Wall time is never substituted for a missing timestamp.
		return nil, &ParseError{Format: model.FormatJournalJSON, Reason: "missing __REALTIME_TIMESTAMP field"}
	}

	micros, err := strconv.ParseInt(*rec.RealtimeTimestamp, 10, 64)
	if err != nil || micros < 0 {
		return nil, &ParseError{Format: model.FormatJournalJSON, Reason: "invalid __REALTIME_TIMESTAMP value"}
	}

	priority := model.PriorityInfo
	if rec.Priority != nil {
		priority, err = strconv.Atoi(strings.TrimSpace(*rec.Priority))
		if err != nil || priority < model.PriorityEmerg || priority > model.PriorityDebug {
			return nil, &ParseError{Format: model.FormatJournalJSON, Reason: "PRIORITY out of range 0-7"}
		}
	}

	service := rec.SystemdUnit
	if service == "" {
		service = rec.SyslogIdentifier
	}
	if service == "" {
		service = "unknown"
	}

	pid := 0
	if rec.PID != "" {
		pid, _ = strconv.Atoi(rec.PID)
	}

	return &model.LogEntry{
		Timestamp: time.UnixMicro(micros).UTC(),
		Host:      rec.Hostname,
		Service:   service,
		PID:       pid,
		Priority:  priority,
		Message:   *rec.Message,
		Format:    model.FormatJournalJSON,
		Raw:       line,
	}, nil
}

func parseSyslogText(line string, format model.Format, now time.Time) (*model.LogEntry, error) {
	m := syslogLineRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, &ParseError{Format: format, Reason: "line does not match syslog grammar"}
	}

	month, ok := monthsByName[m[1]]
	if !ok {
		return nil, &ParseError{Format: format, Reason: "unknown month " + m[1]}
	}
	if format == model.FormatJournalShortPrecise && m[6] == "" {
		return nil, &ParseError{Format: format, Reason: "missing microsecond fraction"}
	}

	day, _ := strconv.Atoi(m[2])
	hour, _ := strconv.Atoi(m[3])
	minute, _ := strconv.Atoi(m[4])
	sec, _ := strconv.Atoi(m[5])
	nanos := 0
	if m[6] != "" {
		micros, _ := strconv.Atoi(m[6])
		nanos = micros * 1000
	}

	ts := time.Date(now.Year(), month, day, hour, minute, sec, nanos, time.UTC)
	// Text formats carry no year. Assume the current year unless that
	// lands the entry in the future, which means the line was written
	// before a year boundary we have since crossed.
	if ts.After(now.Add(yearRolloverWindow)) {
		ts = ts.AddDate(-1, 0, 0)
	}

	pid := 0
	if m[9] != "" {
		pid, _ = strconv.Atoi(m[9])
	}

	message := m[10]
	return &model.LogEntry{
		Timestamp: ts,
		Host:      m[7],
		Service:   m[8],
		PID:       pid,
		Priority:  PriorityFromText(message),
		Message:   message,
		Format:    format,
		Raw:       line,
	}, nil
}
