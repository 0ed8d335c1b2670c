// Package pipeline drives the analysis pipeline over one input stream:
// format detection, parsing, filtering, aggregation, and cadence-driven
// anomaly detection. A Controller owns its aggregator and filter engine
// exclusively; consumers read through published snapshots.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gourav-shinde/jlog/internal/aggregate"
	"github.com/gourav-shinde/jlog/internal/anomaly"
	"github.com/gourav-shinde/jlog/internal/filter"
	"github.com/gourav-shinde/jlog/internal/logformat"
	"github.com/gourav-shinde/jlog/internal/logparse"
	"github.com/gourav-shinde/jlog/internal/model"
)

// State tracks where a controller is in its lifecycle.
type State int32

const (
	StateIdle State = iota
	StateReading
	StateTailing
	StateEndOfInput
	StateClosed
)

// String returns the display name of the state.
func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateTailing:
		return "tailing"
	case StateEndOfInput:
		return "end-of-input"
	case StateClosed:
		return "closed"
	default:
		return "idle"
	}
}

// LineSource is the abstract input the controller consumes. The
// logsource implementations all satisfy it; the controller never opens
// files or sockets itself.
type LineSource interface {
	Lines() <-chan model.IngestEnvelope
	Stop()
	Name() string
}

// subscriberBuffer is the per-subscriber snapshot channel depth. A
// subscriber that falls further behind loses intermediate snapshots,
// never the final one's latest-state visibility.
const subscriberBuffer = 8

// Config fixes one analysis run. The zero value analyzes in batch mode
// with a keep-everything filter and default granularity and thresholds.
type Config struct {
	Filter      filter.Spec
	Granularity time.Duration
	TopN        int
	Thresholds  anomaly.Thresholds

	// Tail re-runs detection on Cadence ticks instead of once at end of
	// input.
	Tail    bool
	Cadence time.Duration

	// Sink receives each kept entry, for consumers that display or store
	// live rows. Optional.
	Sink model.EntrySink
}

// Controller runs the pipeline over a single line source. Ingestion is
// strictly sequential in arrival order; a Controller is single-use.
type Controller struct {
	cfg       Config
	engine    *filter.Engine
	agg       *aggregate.Aggregator
	det       *anomaly.Detector
	sniffer   logformat.Sniffer
	formatSet bool

	state atomic.Int32

	mu        sync.Mutex
	latest    model.ResultSnapshot
	hasLatest bool
	subs      []chan model.ResultSnapshot
	subsDone  bool
}

// New validates cfg and builds an idle controller. Filter construction
// errors (bad regex, inverted time range) surface here, before any input
// is read.
func New(cfg Config) (*Controller, error) {
	if cfg.Granularity == 0 {
		cfg.Granularity = model.DefaultBucketGranularity
	}
	if cfg.Cadence <= 0 {
		cfg.Cadence = model.DefaultDetectCadence
	}

	engine, err := filter.NewEngine(cfg.Filter)
	if err != nil {
		return nil, err
	}
	agg, err := aggregate.New(aggregate.Config{Granularity: cfg.Granularity, TopN: cfg.TopN})
	if err != nil {
		return nil, err
	}

	return &Controller{
		cfg:    cfg,
		engine: engine,
		agg:    agg,
		det:    anomaly.New(cfg.Thresholds),
	}, nil
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State { return State(c.state.Load()) }

// Subscribe registers a snapshot channel. Subscribers receive a snapshot
// per cadence tick in tailing mode and a final snapshot when the run
// ends; slow subscribers drop intermediate snapshots. The channel is
// closed when the controller closes.
func (c *Controller) Subscribe() <-chan model.ResultSnapshot {
	ch := make(chan model.ResultSnapshot, subscriberBuffer)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subsDone {
		close(ch)
		return ch
	}
	c.subs = append(c.subs, ch)
	return ch
}

// LatestSnapshot returns the most recently published snapshot.
func (c *Controller) LatestSnapshot() (model.ResultSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.hasLatest
}

// Run consumes src until end of input or context cancellation. In batch
// mode it runs detection once after the source is drained; in tailing
// mode it also publishes a snapshot on every cadence tick. A final
// snapshot is always flushed before the source is released, including on
// cancellation. Run may be called once.
func (c *Controller) Run(ctx context.Context, src LineSource) error {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateReading)) {
		return errors.New("pipeline: controller already ran")
	}

	defer func() {
		c.publish(true)
		c.closeSubscribers()
		src.Stop()
		c.state.Store(int32(StateClosed))
	}()

	var tick <-chan time.Time
	if c.cfg.Tail {
		ticker := time.NewTicker(c.cfg.Cadence)
		defer ticker.Stop()
		tick = ticker.C
	}

	lines := src.Lines()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			// First tick means the initial read has caught up and the
			// controller is following appended data.
			c.state.Store(int32(StateTailing))
			c.publish(false)
		case env, ok := <-lines:
			if !ok {
				c.state.Store(int32(StateEndOfInput))
				return sourceErr(src)
			}
			if err := c.ingestLine(env.Line); err != nil {
				return fmt.Errorf("pipeline: source %s: %w", src.Name(), err)
			}
		}
	}
}

// ingestLine advances the pipeline by one raw line. Only a failed format
// decision is fatal; grammar and field failures increment the
// parse-failure counter and keep the run alive.
func (c *Controller) ingestLine(line string) error {
	c.agg.CountLine()

	format, decided, err := c.sniffer.Observe(line)
	if err != nil {
		return err
	}
	if !decided {
		// Non-empty prefix lines that match no candidate are malformed
		// input, not a new format.
		if line != "" {
			c.agg.CountParseFailure()
		}
		return nil
	}
	if !c.formatSet {
		c.agg.SetFormat(format)
		c.formatSet = true
	}

	entry, err := logparse.Parse(line, format)
	if err != nil {
		c.agg.CountParseFailure()
		return nil
	}
	if !c.engine.Matches(entry) {
		c.agg.CountFiltered()
		return nil
	}

	c.agg.Ingest(entry)
	if c.cfg.Sink != nil {
		c.cfg.Sink.Add(entry)
	}
	return nil
}

// publish runs detection over current aggregate state and hands the
// resulting immutable snapshot to every subscriber.
func (c *Controller) publish(final bool) {
	snap := model.ResultSnapshot{
		Summary:  c.agg.Snapshot(),
		Patterns: c.det.Detect(c.agg),
		Final:    final,
		At:       time.Now(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = snap
	c.hasLatest = true
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			log.Printf("pipeline: subscriber lagging, dropping snapshot")
		}
	}
}

func (c *Controller) closeSubscribers() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subsDone = true
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
}

// sourceErr surfaces a terminal read error from sources that track one.
func sourceErr(src LineSource) error {
	type errReporter interface{ Err() error }
	if r, ok := src.(errReporter); ok {
		if err := r.Err(); err != nil {
			return fmt.Errorf("pipeline: source %s: %w", src.Name(), err)
		}
	}
	return nil
}
