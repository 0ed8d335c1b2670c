package logsource

import (
	"sync"

	"github.com/gourav-shinde/jlog/internal/model"
)

// ProgressTracker drains a progress side channel and retains the latest
// report for pull-based consumers (HTTP, socket RPC).
type ProgressTracker struct {
	mu     sync.Mutex
	latest model.Progress
	has    bool
	done   chan struct{}
}

// NewProgressTracker starts draining ch in a background goroutine until
// it closes.
func NewProgressTracker(ch <-chan model.Progress) *ProgressTracker {
	t := &ProgressTracker{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		for p := range ch {
			t.mu.Lock()
			t.latest = p
			t.has = true
			t.mu.Unlock()
		}
	}()
	return t
}

// LatestProgress returns the most recent report, if any arrived yet.
func (t *ProgressTracker) LatestProgress() (model.Progress, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest, t.has
}
