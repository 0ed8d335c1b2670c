package logparse

import (
	"regexp"

	"github.com/gourav-shinde/jlog/internal/model"
)

// Text log formats carry no priority field. PriorityFromText maps
// recognized severity keywords in the message to a syslog priority; a
// message with no keyword defaults to informational. The keyword table is
// the whole heuristic — there is no hidden scoring behind it.
//
//	panic, fatal, critical, crit          -> 2 (CRIT)
//	error, err, failed, failure, denied   -> 3 (ERR)
//	warning, warn, timeout                -> 4 (WARNING)
//	notice                                -> 5 (NOTICE)
//	debug, trace                          -> 7 (DEBUG)
//	anything else                         -> 6 (INFO)
var severityKeywordRegex = regexp.MustCompile(
	`(?i)\b(panic|fatal|critical|crit|error|err|failed|failure|denied|warning|warn|timeout|notice|debug|trace)\b`)

var priorityByKeyword = map[string]int{
	"panic":    model.PriorityCrit,
	"fatal":    model.PriorityCrit,
	"critical": model.PriorityCrit,
	"crit":     model.PriorityCrit,
	"error":    model.PriorityErr,
	"err":      model.PriorityErr,
	"failed":   model.PriorityErr,
	"failure":  model.PriorityErr,
	"denied":   model.PriorityErr,
	"warning":  model.PriorityWarning,
	"warn":     model.PriorityWarning,
	"timeout":  model.PriorityWarning,
	"notice":   model.PriorityNotice,
	"debug":    model.PriorityDebug,
	"trace":    model.PriorityDebug,
}

// PriorityFromText returns the heuristic priority for a text-format
// message. The first recognized keyword wins.
func PriorityFromText(message string) int {
	m := severityKeywordRegex.FindStringSubmatch(message)
	if len(m) > 1 {
		if p, ok := priorityByKeyword[normalizeKeyword(m[1])]; ok {
			return p
		}
	}
	return model.PriorityInfo
}

func normalizeKeyword(kw string) string {
	b := []byte(kw)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
