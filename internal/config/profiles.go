// Package config loads named analysis profiles from YAML. A profile
// bundles a filter spec, anomaly thresholds, and aggregation settings so
// a recurring investigation can be replayed without retyping flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gourav-shinde/jlog/internal/anomaly"
	"github.com/gourav-shinde/jlog/internal/filter"
	"github.com/gourav-shinde/jlog/internal/model"
)

// ProfileFile is the root structure of a profiles YAML file.
type ProfileFile struct {
	Profiles map[string]*Profile `yaml:"profiles"`
}

// Profile is one named analysis configuration. Zero fields fall back to
// the pipeline defaults.
type Profile struct {
	Granularity time.Duration      `yaml:"granularity,omitempty"`
	TopN        int                `yaml:"top-n,omitempty"`
	Filter      FilterConfig       `yaml:"filter,omitempty"`
	Thresholds  anomaly.Thresholds `yaml:"thresholds,omitempty"`
}

// FilterConfig is the YAML form of a filter spec. Priorities accept
// either syslog names ("err") or numeric values ("3"); times are
// RFC 3339.
type FilterConfig struct {
	MaxPriority string       `yaml:"max-priority,omitempty"`
	Unit        string       `yaml:"unit,omitempty"`
	UnitExact   bool         `yaml:"unit-exact,omitempty"`
	Since       string       `yaml:"since,omitempty"`
	Until       string       `yaml:"until,omitempty"`
	Terms       []TermConfig `yaml:"terms,omitempty"`
	Combine     string       `yaml:"combine,omitempty"`
}

// TermConfig is one regex term of a filter.
type TermConfig struct {
	Pattern string `yaml:"pattern"`
	Negate  bool   `yaml:"negate,omitempty"`
}

// Load reads and validates a profiles file. Every profile must compile:
// a malformed regex or priority fails the whole load, not the later run.
func Load(path string) (*ProfileFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading profiles file: %w", err)
	}

	var pf ProfileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("config: parsing profiles file: %w", err)
	}

	if len(pf.Profiles) == 0 {
		return nil, errors.New("config: profiles: at least one profile is required")
	}

	for name, p := range pf.Profiles {
		if p == nil {
			return nil, fmt.Errorf("config: profiles[%s]: empty profile", name)
		}
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("config: profiles[%s]: %w", name, err)
		}
	}

	return &pf, nil
}

// Profile returns the named profile.
func (pf *ProfileFile) Profile(name string) (*Profile, error) {
	p, ok := pf.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown profile %q", name)
	}
	return p, nil
}

func (p *Profile) validate() error {
	if p.Granularity < 0 {
		return errors.New("granularity must not be negative")
	}
	if p.TopN < 0 {
		return errors.New("top-n must not be negative")
	}
	spec, err := p.FilterSpec()
	if err != nil {
		return err
	}
	if _, err := filter.NewEngine(spec); err != nil {
		return err
	}
	return nil
}

// FilterSpec converts the YAML filter form into a compiled-ready spec.
func (p *Profile) FilterSpec() (filter.Spec, error) {
	spec := filter.DefaultSpec()

	if p.Filter.MaxPriority != "" {
		prio, err := ParsePriority(p.Filter.MaxPriority)
		if err != nil {
			return spec, fmt.Errorf("max-priority: %w", err)
		}
		spec.PriorityCeiling = prio
	}

	spec.Unit = p.Filter.Unit
	spec.UnitExact = p.Filter.UnitExact

	if p.Filter.Since != "" {
		t, err := time.Parse(time.RFC3339, p.Filter.Since)
		if err != nil {
			return spec, fmt.Errorf("since: %w", err)
		}
		spec.Since = t
	}
	if p.Filter.Until != "" {
		t, err := time.Parse(time.RFC3339, p.Filter.Until)
		if err != nil {
			return spec, fmt.Errorf("until: %w", err)
		}
		spec.Until = t
	}

	mode, err := filter.ParseCombineMode(p.Filter.Combine)
	if err != nil {
		return spec, err
	}
	spec.Mode = mode

	for i, term := range p.Filter.Terms {
		if term.Pattern == "" {
			return spec, fmt.Errorf("terms[%d]: pattern is required", i)
		}
		spec.Terms = append(spec.Terms, filter.Term{Pattern: term.Pattern, Negate: term.Negate})
	}

	return spec, nil
}

// ParsePriority maps a syslog priority name or numeral to its value.
func ParsePriority(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "emerg", "emergency":
		return model.PriorityEmerg, nil
	case "alert":
		return model.PriorityAlert, nil
	case "crit", "critical":
		return model.PriorityCrit, nil
	case "err", "error":
		return model.PriorityErr, nil
	case "warning", "warn":
		return model.PriorityWarning, nil
	case "notice":
		return model.PriorityNotice, nil
	case "info":
		return model.PriorityInfo, nil
	case "debug":
		return model.PriorityDebug, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < model.PriorityEmerg || n > model.PriorityDebug {
		return 0, fmt.Errorf("invalid priority %q", s)
	}
	return n, nil
}
