package logparse

import (
	"errors"
	"testing"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

var testNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

func TestParseJournalJSON(t *testing.T) {
	t.Parallel()
	line := `{"__REALTIME_TIMESTAMP":"1705312245123456","_HOSTNAME":"web1","PRIORITY":"3","_SYSTEMD_UNIT":"sshd.service","_PID":"4242","MESSAGE":"Failed password for root"}`

	entry, err := Parse(line, model.FormatJournalJSON)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := time.UnixMicro(1705312245123456).UTC()
	if !entry.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, want)
	}
	if entry.Priority != model.PriorityErr {
		t.Errorf("priority = %d, want %d", entry.Priority, model.PriorityErr)
	}
	if entry.Service != "sshd.service" {
		t.Errorf("service = %q, want sshd.service", entry.Service)
	}
	if entry.Host != "web1" {
		t.Errorf("host = %q, want web1", entry.Host)
	}
	if entry.PID != 4242 {
		t.Errorf("pid = %d, want 4242", entry.PID)
	}
	if entry.Message != "Failed password for root" {
		t.Errorf("message = %q", entry.Message)
	}
}

func TestParseJournalJSON_SyslogIdentifierFallback(t *testing.T) {
	t.Parallel()
	line := `{"__REALTIME_TIMESTAMP":"1705312245000000","SYSLOG_IDENTIFIER":"kernel","MESSAGE":"oom-killer invoked"}`
	entry, err := Parse(line, model.FormatJournalJSON)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if entry.Service != "kernel" {
		t.Errorf("service = %q, want kernel", entry.Service)
	}
	// Missing PRIORITY defaults to informational.
	if entry.Priority != model.PriorityInfo {
		t.Errorf("priority = %d, want %d", entry.Priority, model.PriorityInfo)
	}
}

func TestParseJournalJSON_Failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		line string
	}{
		{"not json", "plain text line"},
		{"missing message", `{"__REALTIME_TIMESTAMP":"1705312245000000","PRIORITY":"6"}`},
		{"missing timestamp", `{"MESSAGE":"hi","PRIORITY":"6"}`},
		{"priority out of range", `{"__REALTIME_TIMESTAMP":"1705312245000000","MESSAGE":"hi","PRIORITY":"9"}`},
		{"priority not numeric", `{"__REALTIME_TIMESTAMP":"1705312245000000","MESSAGE":"hi","PRIORITY":"err"}`},
		{"timestamp not numeric", `{"__REALTIME_TIMESTAMP":"soon","MESSAGE":"hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.line, model.FormatJournalJSON)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("err = %v, want *ParseError", err)
			}
		})
	}
}

func TestParsePlainSyslog(t *testing.T) {
	t.Parallel()
	entry, err := parseAt("Jan 15 10:30:45 web1 sshd[4242]: Accepted publickey for root", model.FormatPlainSyslog, testNow)
	if err != nil {
		t.Fatalf("parseAt returned error: %v", err)
	}
	want := time.Date(2024, time.January, 15, 10, 30, 45, 0, time.UTC)
	if !entry.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, want)
	}
	if entry.Host != "web1" || entry.Service != "sshd" || entry.PID != 4242 {
		t.Errorf("host/service/pid = %q/%q/%d", entry.Host, entry.Service, entry.PID)
	}
	if entry.Priority != model.PriorityInfo {
		t.Errorf("priority = %d, want info default", entry.Priority)
	}
}

func TestParseShortPrecise_Microseconds(t *testing.T) {
	t.Parallel()
	entry, err := parseAt("Jan 15 10:30:45.123456 web1 systemd-logind: New session 7", model.FormatJournalShortPrecise, testNow)
	if err != nil {
		t.Fatalf("parseAt returned error: %v", err)
	}
	want := time.Date(2024, time.January, 15, 10, 30, 45, 123456000, time.UTC)
	if !entry.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", entry.Timestamp, want)
	}
	if entry.Service != "systemd-logind" {
		t.Errorf("service = %q", entry.Service)
	}
	if entry.PID != 0 {
		t.Errorf("pid = %d, want 0 (absent)", entry.PID)
	}
}

func TestParseShortPrecise_RequiresFraction(t *testing.T) {
	t.Parallel()
	_, err := parseAt("Jan 15 10:30:45 web1 sshd[1]: msg", model.FormatJournalShortPrecise, testNow)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("err = %v, want *ParseError for missing fraction", err)
	}
}

func TestParseSyslog_YearRollover(t *testing.T) {
	t.Parallel()
	// Tailing on Jan 2: a Dec 31 line belongs to the previous year.
	now := time.Date(2025, time.January, 2, 1, 0, 0, 0, time.UTC)
	entry, err := parseAt("Dec 31 23:59:59 web1 cron[9]: session closed", model.FormatPlainSyslog, now)
	if err != nil {
		t.Fatalf("parseAt returned error: %v", err)
	}
	if entry.Timestamp.Year() != 2024 {
		t.Errorf("year = %d, want 2024", entry.Timestamp.Year())
	}

	// A same-month line keeps the current year.
	entry, err = parseAt("Jan  1 00:00:01 web1 cron[9]: session opened", model.FormatPlainSyslog, now)
	if err != nil {
		t.Fatalf("parseAt returned error: %v", err)
	}
	if entry.Timestamp.Year() != 2025 {
		t.Errorf("year = %d, want 2025", entry.Timestamp.Year())
	}
}

func TestParseSyslog_GrammarFailure(t *testing.T) {
	t.Parallel()
	for _, line := range []string{"", "not a syslog line", "Jan 15 web1 sshd: msg"} {
		if _, err := parseAt(line, model.FormatPlainSyslog, testNow); err == nil {
			t.Errorf("parseAt(%q) succeeded, want error", line)
		}
	}
}

func TestPriorityFromText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		message string
		want    int
	}{
		{"Failed password for invalid user", model.PriorityErr},
		{"connection ERROR on eth0", model.PriorityErr},
		{"Warning: certificate expires soon", model.PriorityWarning},
		{"read timeout after 30s", model.PriorityWarning},
		{"kernel panic - not syncing", model.PriorityCrit},
		{"debug: cache miss", model.PriorityDebug},
		{"session opened for user root", model.PriorityInfo},
		{"transferred 1000 bytes", model.PriorityInfo},
	}
	for _, tt := range tests {
		if got := PriorityFromText(tt.message); got != tt.want {
			t.Errorf("PriorityFromText(%q) = %d, want %d", tt.message, got, tt.want)
		}
	}
}
