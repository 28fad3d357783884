package analyzer

import (
	"context"
	"sync"
	"sync/atomic"
)

// ProgressFunc is called to report analysis progress.
// current is the number of items processed in the phase, total is the
// phase's item count, and item identifies what was just processed.
type ProgressFunc func(phase Phase, current, total int, item string)

// Tracker tracks per-phase progress.
// It is safe for concurrent use from multiple goroutines.
type Tracker struct {
	mu       sync.Mutex
	phase    Phase
	total    atomic.Int32
	current  atomic.Int32
	callback ProgressFunc
}

// NewTracker creates a new progress tracker with the given callback.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// StartPhase resets the counters for a new phase with n items.
func (t *Tracker) StartPhase(phase Phase, n int) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
	t.current.Store(0)
	t.total.Store(int32(n))
}

// Tick marks one item of the current phase as completed.
func (t *Tracker) Tick(item string) {
	current := int(t.current.Add(1))
	total := int(t.total.Load())
	if t.callback != nil {
		t.callback(t.Phase(), current, total, item)
	}
}

// Phase returns the phase being tracked.
func (t *Tracker) Phase() Phase {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.phase
}

// Current returns the current progress count.
func (t *Tracker) Current() int {
	return int(t.current.Load())
}

// Total returns the total count.
func (t *Tracker) Total() int {
	return int(t.total.Load())
}

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext extracts the progress tracker from the context.
// Returns nil if no tracker was set.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
