package model

import "time"

// Format identifies the wire format of one input stream.
// Detection picks a format once per stream; mixed-format inputs are not
// supported.
type Format int

const (
	FormatUnknown Format = iota
	FormatPlainSyslog
	FormatJournalShortPrecise
	FormatJournalJSON
)

// String returns the config/display name of the format.
func (f Format) String() string {
	switch f {
	case FormatPlainSyslog:
		return "syslog"
	case FormatJournalShortPrecise:
		return "short-precise"
	case FormatJournalJSON:
		return "journal-json"
	default:
		return "unknown"
	}
}

// Syslog priorities, 0 (most severe) through 7.
const (
	PriorityEmerg = iota
	PriorityAlert
	PriorityCrit
	PriorityErr
	PriorityWarning
	PriorityNotice
	PriorityInfo
	PriorityDebug
)

// PriorityName returns the short syslog label for a priority value.
func PriorityName(p int) string {
	names := [...]string{"EMERG", "ALERT", "CRIT", "ERR", "WARNING", "NOTICE", "INFO", "DEBUG"}
	if p < 0 || p >= len(names) {
		return "UNKNOWN"
	}
	return names[p]
}

// LogEntry is the canonical parsed form of one log line. It is immutable
// once constructed and is discarded after it has updated aggregate state
// and been forwarded to any live sink.
type LogEntry struct {
	Timestamp time.Time // resolved to UTC
	Host      string
	Service   string // unit or syslog identifier, "unknown" when absent
	PID       int    // 0 = not present
	Priority  int    // 0-7, lower is more severe
	Message   string
	Format    Format
	Raw       string // original line, retained transiently only
}

// SignatureCount pairs a normalized message signature with its count and
// one representative raw message.
type SignatureCount struct {
	Signature string `json:"signature"`
	Count     int64  `json:"count"`
	Example   string `json:"example"`
}

// ServiceCount pairs a service/unit name with its entry count.
type ServiceCount struct {
	Service string `json:"service"`
	Count   int64  `json:"count"`
}

// AnalysisSummary is the read-only snapshot of aggregate statistics for a
// run. All slices and maps are owned by the snapshot and never mutated
// after publication.
type AnalysisSummary struct {
	LinesRead      int64            `json:"lines_read"`
	ParseFailures  int64            `json:"parse_failures"`
	FilteredOut    int64            `json:"filtered_out"`
	EntriesMatched int64            `json:"entries_matched"`
	ByPriority     [8]int64         `json:"by_priority"`
	TopServices    []ServiceCount   `json:"top_services"`
	TopSignatures  []SignatureCount `json:"top_signatures"`
	FirstEntry     time.Time        `json:"first_entry"`
	LastEntry      time.Time        `json:"last_entry"`
	Format         Format           `json:"-"`
}

// PatternKind classifies a detected anomaly.
type PatternKind string

const (
	PatternSpike      PatternKind = "spike"
	PatternBurst      PatternKind = "burst"
	PatternRecurring  PatternKind = "recurring"
	PatternIncreasing PatternKind = "increasing"
	PatternHighVolume PatternKind = "high-volume"
)

// Severity ranks detected patterns for ordering and display.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

// String returns the display name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "critical"
	case SeverityWarning:
		return "warning"
	default:
		return "info"
	}
}

// DetectedPattern is one anomaly finding produced from aggregator state.
// A fresh detection run produces a fresh set; findings never persist
// across runs.
type DetectedPattern struct {
	Kind      PatternKind `json:"kind"`
	Severity  Severity    `json:"severity"`
	Signature string      `json:"signature"`
	Example   string      `json:"example"`
	Count     int64       `json:"count"`

	// Kind-specific evidence.
	PeakCount        int64   `json:"peak_count,omitempty"`
	AvgCount         float64 `json:"avg_count,omitempty"`
	OccupiedFraction float64 `json:"occupied_fraction,omitempty"`
	FirstHalfCount   int64   `json:"first_half_count,omitempty"`
	SecondHalfCount  int64   `json:"second_half_count,omitempty"`
	Description      string  `json:"description"`
}

// ResultSnapshot is the immutable unit published to subscribers at each
// cadence tick and at end of input.
type ResultSnapshot struct {
	Summary  AnalysisSummary   `json:"summary"`
	Patterns []DetectedPattern `json:"patterns"`
	Final    bool              `json:"final"`
	At       time.Time         `json:"at"`
}

// Progress reports ingestion progress for inputs whose size is known.
// It is a side channel, never part of the result snapshot.
type Progress struct {
	Lines   int64
	Bytes   int64
	Percent float64
}
