// Package filter evaluates a fixed predicate chain against canonical log
// entries: priority ceiling, unit match, time range, then regex terms.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

// CombineMode is the boolean composition applied across regex terms.
// Negation is expressed per term, not as a mode.
type CombineMode int

const (
	CombineAnd CombineMode = iota
	CombineOr
)

// String returns the config name of the mode.
func (m CombineMode) String() string {
	if m == CombineOr {
		return "or"
	}
	return "and"
}

// ParseCombineMode maps a config string to a CombineMode.
func ParseCombineMode(s string) (CombineMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "and":
		return CombineAnd, nil
	case "or":
		return CombineOr, nil
	default:
		return CombineAnd, fmt.Errorf("filter: unknown combine mode %q", s)
	}
}

// Term is one regex predicate. Matching is case-insensitive; Negate
// inverts the term into an exclusion.
type Term struct {
	Pattern string
	Negate  bool
}

// Spec is the immutable filter configuration for one run. The zero value
// keeps everything (ceiling defaults to debug).
type Spec struct {
	PriorityCeiling int // entries with a larger (less severe) priority are rejected
	Unit            string
	UnitExact       bool // exact match instead of substring
	Since           time.Time
	Until           time.Time // zero = open-ended
	Terms           []Term
	Mode            CombineMode
}

// DefaultSpec returns a spec that keeps every entry.
func DefaultSpec() Spec {
	return Spec{PriorityCeiling: model.PriorityDebug}
}

type compiledTerm struct {
	re     *regexp.Regexp
	negate bool
}

// Engine is a compiled Spec. Construction validates every regex; a
// malformed pattern is an error here, never per entry.
type Engine struct {
	spec  Spec
	terms []compiledTerm
}

// NewEngine compiles spec into an Engine.
func NewEngine(spec Spec) (*Engine, error) {
	if spec.PriorityCeiling < model.PriorityEmerg || spec.PriorityCeiling > model.PriorityDebug {
		return nil, fmt.Errorf("filter: priority ceiling %d out of range 0-7", spec.PriorityCeiling)
	}
	if !spec.Since.IsZero() && !spec.Until.IsZero() && spec.Until.Before(spec.Since) {
		return nil, fmt.Errorf("filter: time range ends (%v) before it starts (%v)", spec.Until, spec.Since)
	}

	terms := make([]compiledTerm, 0, len(spec.Terms))
	for _, term := range spec.Terms {
		re, err := regexp.Compile("(?i)" + term.Pattern)
		if err != nil {
			return nil, fmt.Errorf("filter: invalid pattern %q: %w", term.Pattern, err)
		}
		terms = append(terms, compiledTerm{re: re, negate: term.Negate})
	}

	return &Engine{spec: spec, terms: terms}, nil
}

// Spec returns the spec the engine was built from.
func (e *Engine) Spec() Spec { return e.spec }

// Matches reports whether entry passes the full predicate chain.
func (e *Engine) Matches(entry *model.LogEntry) bool {
	// Lower numeric priority is more severe and always passes the ceiling.
	if entry.Priority > e.spec.PriorityCeiling {
		return false
	}

	if e.spec.Unit != "" {
		if e.spec.UnitExact {
			if entry.Service != e.spec.Unit {
				return false
			}
		} else if !strings.Contains(entry.Service, e.spec.Unit) {
			return false
		}
	}

	if !e.spec.Since.IsZero() && entry.Timestamp.Before(e.spec.Since) {
		return false
	}
	if !e.spec.Until.IsZero() && entry.Timestamp.After(e.spec.Until) {
		return false
	}

	return e.matchTerms(entry.Message)
}

func (e *Engine) matchTerms(message string) bool {
	if len(e.terms) == 0 {
		return true
	}

	positives := 0
	positiveHits := 0
	for _, term := range e.terms {
		matched := term.re.MatchString(message)
		if term.negate {
			// A matching negated term excludes the entry in both modes.
			if matched {
				return false
			}
			continue
		}
		positives++
		if matched {
			positiveHits++
		} else if e.spec.Mode == CombineAnd {
			return false
		}
	}

	if e.spec.Mode == CombineOr && positives > 0 {
		return positiveHits > 0
	}
	return true
}
