package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gourav-shinde/jlog/internal/filter"
	"github.com/gourav-shinde/jlog/internal/logformat"
	"github.com/gourav-shinde/jlog/internal/model"
)

type fakeSource struct {
	ch      chan model.IngestEnvelope
	err     error
	stopped bool
	mu      sync.Mutex
}

func newFakeSource(lines ...string) *fakeSource {
	f := &fakeSource{ch: make(chan model.IngestEnvelope, len(lines))}
	for _, line := range lines {
		f.ch <- model.IngestEnvelope{Source: "fake", Line: line}
	}
	close(f.ch)
	return f
}

func (f *fakeSource) Lines() <-chan model.IngestEnvelope { return f.ch }
func (f *fakeSource) Name() string                       { return "fake" }
func (f *fakeSource) Err() error                         { return f.err }
func (f *fakeSource) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func (f *fakeSource) wasStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func syslogLine(minute int, msg string) string {
	return fmt.Sprintf("Jan 15 10:%02d:00 web01 sshd[412]: %s", minute, msg)
}

func TestNew_FilterErrorsSurfaceBeforeInput(t *testing.T) {
	t.Parallel()
	_, err := New(Config{Filter: filter.Spec{Terms: []filter.Term{{Pattern: "("}}}})
	if err == nil {
		t.Fatal("bad regex accepted at construction")
	}
}

func TestRun_Batch(t *testing.T) {
	t.Parallel()
	src := newFakeSource(
		syslogLine(0, "Failed password for root from 10.0.0.1"),
		syslogLine(1, "Failed password for root from 10.0.0.2"),
		syslogLine(2, "session opened for user deploy"),
	)

	c, err := New(Config{Filter: filter.DefaultSpec()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state before run = %v", c.State())
	}
	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if c.State() != StateClosed {
		t.Errorf("state after run = %v", c.State())
	}
	if !src.wasStopped() {
		t.Error("source not released")
	}

	snap, ok := c.LatestSnapshot()
	if !ok || !snap.Final {
		t.Fatalf("final snapshot missing: ok=%v final=%v", ok, snap.Final)
	}
	if snap.Summary.LinesRead != 3 || snap.Summary.EntriesMatched != 3 {
		t.Errorf("lines/matched = %d/%d, want 3/3", snap.Summary.LinesRead, snap.Summary.EntriesMatched)
	}
	if snap.Summary.Format != model.FormatPlainSyslog {
		t.Errorf("format = %v, want syslog", snap.Summary.Format)
	}
	// Two "Failed password" lines share a signature.
	if len(snap.Summary.TopSignatures) != 2 {
		t.Fatalf("signatures = %d, want 2", len(snap.Summary.TopSignatures))
	}
	if snap.Summary.TopSignatures[0].Count != 2 {
		t.Errorf("top signature count = %d, want 2", snap.Summary.TopSignatures[0].Count)
	}
}

func TestRun_ParseFailuresDoNotAbort(t *testing.T) {
	t.Parallel()
	src := newFakeSource(
		syslogLine(0, "service started"),
		"totally unparseable junk",
		syslogLine(1, "service ready"),
	)

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, _ := c.LatestSnapshot()
	if snap.Summary.ParseFailures != 1 {
		t.Errorf("parseFailures = %d, want 1", snap.Summary.ParseFailures)
	}
	if snap.Summary.EntriesMatched != 2 {
		t.Errorf("entriesMatched = %d, want 2", snap.Summary.EntriesMatched)
	}
}

func TestRun_UnknownFormatIsFatal(t *testing.T) {
	t.Parallel()
	lines := make([]string, logformat.MaxPrefixLines)
	for i := range lines {
		lines[i] = "no recognizable format here"
	}
	src := newFakeSource(lines...)

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Run(context.Background(), src)
	if !errors.Is(err, logformat.ErrUnknownFormat) {
		t.Fatalf("Run error = %v, want ErrUnknownFormat", err)
	}
	if !src.wasStopped() {
		t.Error("source not released on fatal error")
	}
}

func TestRun_FilterCounting(t *testing.T) {
	t.Parallel()
	src := newFakeSource(
		syslogLine(0, "error: disk full"),
		syslogLine(1, "all quiet"),
		syslogLine(2, "error: disk still full"),
	)

	c, err := New(Config{Filter: filter.Spec{
		PriorityCeiling: model.PriorityDebug,
		Terms:           []filter.Term{{Pattern: "error"}},
	}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap, _ := c.LatestSnapshot()
	if snap.Summary.FilteredOut != 1 || snap.Summary.EntriesMatched != 2 {
		t.Errorf("filtered/matched = %d/%d, want 1/2", snap.Summary.FilteredOut, snap.Summary.EntriesMatched)
	}
}

type collectSink struct {
	mu      sync.Mutex
	entries []*model.LogEntry
}

func (s *collectSink) Add(e *model.LogEntry) {
	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()
}

func TestRun_ForwardsKeptEntriesToSink(t *testing.T) {
	t.Parallel()
	sink := &collectSink{}
	src := newFakeSource(
		syslogLine(0, "error: one"),
		syslogLine(1, "fine"),
	)

	c, err := New(Config{Filter: filter.Spec{
		PriorityCeiling: model.PriorityDebug,
		Terms:           []filter.Term{{Pattern: "error"}},
	}, Sink: sink})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Run(context.Background(), src); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(sink.entries) != 1 {
		t.Fatalf("sink entries = %d, want 1", len(sink.entries))
	}
	if sink.entries[0].Message != "error: one" {
		t.Errorf("sink message = %q", sink.entries[0].Message)
	}
}

func TestRun_SingleUse(t *testing.T) {
	t.Parallel()
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Run(context.Background(), newFakeSource()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	if err := c.Run(context.Background(), newFakeSource()); err == nil {
		t.Fatal("second Run accepted")
	}
}

func TestRun_SourceErrorPropagates(t *testing.T) {
	t.Parallel()
	src := newFakeSource(syslogLine(0, "partial read"))
	src.err = errors.New("permission revoked")

	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = c.Run(context.Background(), src)
	if err == nil || !errors.Is(err, src.err) {
		t.Fatalf("Run error = %v, want wrapped source error", err)
	}
}

func TestRun_TailingPublishesAndFlushesOnCancel(t *testing.T) {
	t.Parallel()

	src := &fakeSource{ch: make(chan model.IngestEnvelope, 16)}
	for i := 0; i < 4; i++ {
		src.ch <- model.IngestEnvelope{Source: "fake", Line: syslogLine(i, "error: worker crashed")}
	}

	c, err := New(Config{Tail: true, Cadence: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sub := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, src) }()

	// Cadence ticks race the buffered lines, so wait for the snapshot
	// that has caught up with all four entries.
	deadline := time.After(2 * time.Second)
caughtUp:
	for {
		select {
		case snap := <-sub:
			if snap.Final {
				t.Error("cadence snapshot marked final")
			}
			if snap.Summary.EntriesMatched == 4 {
				break caughtUp
			}
		case <-deadline:
			t.Fatal("no caught-up cadence snapshot within 2s")
		}
	}

	if c.State() != StateTailing {
		t.Errorf("state while tailing = %v", c.State())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	// Final snapshot is flushed before the source is released.
	snap, ok := c.LatestSnapshot()
	if !ok || !snap.Final {
		t.Fatalf("final snapshot after cancel: ok=%v final=%v", ok, snap.Final)
	}
	if !src.wasStopped() {
		t.Error("source not released after cancel")
	}

	// Subscriber channel drains to the final snapshot, then closes.
	sawFinal := false
	for s := range sub {
		if s.Final {
			sawFinal = true
		}
	}
	if !sawFinal {
		t.Error("subscriber never saw the final snapshot")
	}
}

func TestSubscribe_AfterCloseReturnsClosedChannel(t *testing.T) {
	t.Parallel()
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Run(context.Background(), newFakeSource()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, ok := <-c.Subscribe(); ok {
		t.Error("post-close subscription delivered a value")
	}
}
