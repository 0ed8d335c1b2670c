// Package aggregate maintains rolling fixed-granularity histograms of
// entry counts. Memory is bounded by distinct (bucket, signature) pairs,
// never by raw entry count.
package aggregate

import (
	"fmt"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
	"github.com/gourav-shinde/jlog/internal/signature"
)

const (
	MinGranularity = time.Minute
	MaxGranularity = time.Hour
)

// Config fixes aggregation parameters for the lifetime of one run.
type Config struct {
	Granularity time.Duration
	TopN        int
}

// Bucket accumulates counts for one fixed time window. Buckets are never
// merged or split after creation within a run.
type Bucket struct {
	Start       time.Time
	Total       int64
	ByPriority  [8]int64
	ByService   map[string]int64
	BySignature map[string]int64
}

// SignatureStat is the run-wide total for one message signature.
type SignatureStat struct {
	Count   int64
	Example string // representative raw message, first seen
}

// Aggregator ingests canonical entries and keeps running statistics.
// It is owned by a single stream controller and is not safe for
// concurrent use; consumers read through Snapshot copies.
type Aggregator struct {
	cfg Config

	buckets map[int64]*Bucket
	order   []int64 // bucket start keys, kept sorted

	linesRead      int64
	parseFailures  int64
	filteredOut    int64
	entriesMatched int64
	byPriority     [8]int64
	byService      map[string]int64
	signatures     map[string]*SignatureStat
	errorOrWorse   int64

	first, last time.Time
	format      model.Format
}

// New validates cfg and returns an empty aggregator.
func New(cfg Config) (*Aggregator, error) {
	if cfg.Granularity < MinGranularity || cfg.Granularity > MaxGranularity {
		return nil, fmt.Errorf("aggregate: granularity %v outside [%v, %v]", cfg.Granularity, MinGranularity, MaxGranularity)
	}
	if cfg.TopN <= 0 {
		cfg.TopN = model.DefaultTopN
	}
	return &Aggregator{
		cfg:        cfg,
		buckets:    make(map[int64]*Bucket),
		byService:  make(map[string]int64),
		signatures: make(map[string]*SignatureStat),
	}, nil
}

// Granularity returns the fixed bucket width for this run.
func (a *Aggregator) Granularity() time.Duration { return a.cfg.Granularity }

// CountLine records one raw line read from the input.
func (a *Aggregator) CountLine() { a.linesRead++ }

// CountParseFailure records a line that could not be parsed. Distinct
// from lines_read, which includes it.
func (a *Aggregator) CountParseFailure() { a.parseFailures++ }

// CountFiltered records a parsed entry rejected by the filter engine.
func (a *Aggregator) CountFiltered() { a.filteredOut++ }

// SetFormat records the detected input format for the run.
func (a *Aggregator) SetFormat(f model.Format) { a.format = f }

// Ingest updates all counts for one kept entry. Amortized O(1): bucket
// lookup is a map access keyed by the floored timestamp.
func (a *Aggregator) Ingest(entry *model.LogEntry) {
	a.entriesMatched++
	if entry.Priority >= 0 && entry.Priority < 8 {
		a.byPriority[entry.Priority]++
	}
	a.byService[entry.Service]++
	if entry.Priority <= model.PriorityErr {
		a.errorOrWorse++
	}

	sig := signature.Normalize(entry.Message)
	stat := a.signatures[sig]
	if stat == nil {
		stat = &SignatureStat{Example: entry.Message}
		a.signatures[sig] = stat
	}
	stat.Count++

	if a.first.IsZero() || entry.Timestamp.Before(a.first) {
		a.first = entry.Timestamp
	}
	if entry.Timestamp.After(a.last) {
		a.last = entry.Timestamp
	}

	b := a.bucketFor(entry.Timestamp)
	b.Total++
	if entry.Priority >= 0 && entry.Priority < 8 {
		b.ByPriority[entry.Priority]++
	}
	b.ByService[entry.Service]++
	b.BySignature[sig]++
}

func (a *Aggregator) bucketFor(ts time.Time) *Bucket {
	start := ts.Truncate(a.cfg.Granularity)
	key := start.Unix()
	if b, ok := a.buckets[key]; ok {
		return b
	}
	b := &Bucket{
		Start:       start,
		ByService:   make(map[string]int64),
		BySignature: make(map[string]int64),
	}
	a.buckets[key] = b

	// Entries arrive mostly in chronological order, so insertion is an
	// append; out-of-order buckets bubble back to keep the scan order.
	a.order = append(a.order, key)
	for i := len(a.order) - 1; i > 0 && a.order[i-1] > a.order[i]; i-- {
		a.order[i-1], a.order[i] = a.order[i], a.order[i-1]
	}
	return b
}

// Buckets returns the buckets in ascending bucket-start order. The
// returned slice is fresh but the buckets are borrowed read-only; only
// the detector scanning between ingests may hold them.
func (a *Aggregator) Buckets() []*Bucket {
	out := make([]*Bucket, len(a.order))
	for i, key := range a.order {
		out[i] = a.buckets[key]
	}
	return out
}

// Signatures exposes run-wide signature totals, borrowed read-only.
func (a *Aggregator) Signatures() map[string]*SignatureStat { return a.signatures }

// ErrorOrWorse returns the count of kept entries with priority err or
// more severe.
func (a *Aggregator) ErrorOrWorse() int64 { return a.errorOrWorse }

// LinesRead returns the raw line count so far.
func (a *Aggregator) LinesRead() int64 { return a.linesRead }
