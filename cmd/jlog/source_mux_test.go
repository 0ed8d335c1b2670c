package main

import (
	"context"
	"testing"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

type fakeSource struct {
	name    string
	lines   chan model.IngestEnvelope
	stopped chan struct{}
	err     error
}

func newFakeSource(name string, buffer int) *fakeSource {
	return &fakeSource{
		name:    name,
		lines:   make(chan model.IngestEnvelope, buffer),
		stopped: make(chan struct{}),
	}
}

func (s *fakeSource) Lines() <-chan model.IngestEnvelope { return s.lines }
func (s *fakeSource) Name() string                       { return s.name }
func (s *fakeSource) Err() error                         { return s.err }

func (s *fakeSource) Stop() {
	select {
	case <-s.stopped:
		return
	default:
		close(s.stopped)
		close(s.lines)
	}
}

func TestSourceMultiplexer_ForwardsFromAllSources(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newFakeSource("a", 2)
	b := newFakeSource("b", 2)

	mux := NewSourceMultiplexer(ctx, []NamedLogSource{a, b}, 16)
	mux.Start()
	defer mux.Stop()

	a.lines <- model.IngestEnvelope{Source: "a", Line: "alpha"}
	b.lines <- model.IngestEnvelope{Source: "b", Line: "beta"}
	a.Stop()
	b.Stop()

	got := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case env, ok := <-mux.Lines():
			if !ok {
				t.Fatalf("multiplexer closed before receiving expected lines: %+v", got)
			}
			got[env.Line] = true
		case <-timeout:
			t.Fatalf("timed out waiting for multiplexed lines: %+v", got)
		}
	}

	if !got["alpha"] || !got["beta"] {
		t.Fatalf("missing expected lines: %+v", got)
	}
}

func TestSourceMultiplexer_StopInvokesSourceStop(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := newFakeSource("x", 1)
	mux := NewSourceMultiplexer(ctx, []NamedLogSource{src}, 8)
	mux.Start()

	mux.Stop()

	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected source Stop() to be called")
	}
}

func TestSourceMultiplexer_NamePrimarySource(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	file := newFakeSource("file", 1)
	tcp := newFakeSource("tcp", 1)
	mux := NewSourceMultiplexer(ctx, []NamedLogSource{file, tcp}, 8)
	defer mux.Stop()

	if mux.Name() != "file" {
		t.Fatalf("Name() = %q, want %q", mux.Name(), "file")
	}

	empty := NewSourceMultiplexer(ctx, nil, 8)
	if empty.Name() != "none" {
		t.Fatalf("empty Name() = %q, want %q", empty.Name(), "none")
	}
}

func TestSourceMultiplexer_ErrSurfacesSourceError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	healthy := newFakeSource("a", 1)
	broken := newFakeSource("b", 1)
	broken.err = context.DeadlineExceeded

	mux := NewSourceMultiplexer(ctx, []NamedLogSource{healthy, broken}, 8)
	mux.Start()
	mux.Stop()

	if mux.Err() != context.DeadlineExceeded {
		t.Fatalf("Err() = %v, want %v", mux.Err(), context.DeadlineExceeded)
	}
}
