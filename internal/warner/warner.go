// Package warner coalesces per-category drop warnings so a sustained burst
// of drops never floods the diagnostic log at the same rate as the drops
// themselves.
package warner

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Category names the reason a record was dropped.
type Category string

const (
	CategoryQueueFull     Category = "QueueFull"
	CategoryClosed        Category = "Closed"
	CategoryTimeout       Category = "Timeout"
	CategoryUnknownLevel  Category = "UnknownLevel"
	CategoryWriteError    Category = "WriteError"
	CategoryFrameTooLarge Category = "FrameTooLarge"
	CategoryPermanent     Category = "Permanent"
	CategoryDisconnected  Category = "Disconnected"
)

// DefaultInterval is the default coalescing window (spec.md 4.D: 5s).
const DefaultInterval = 5 * time.Second

type counter struct {
	dropped atomic.Uint64
	// limiter allows at most one warning per Interval; burst 1 means the
	// very first warn_if_due call after construction is allowed
	// immediately, matching spec.md's "first call may emit immediately".
	limiter *rate.Limiter
}

// Warner coalesces drop warnings per category over a configurable
// interval. It is safe for concurrent use by many producer goroutines and
// one or more worker goroutines.
type Warner struct {
	interval time.Duration
	mu       sync.Mutex
	counters map[Category]*counter
}

// New builds a Warner with the given coalescing interval. interval <= 0
// uses DefaultInterval.
func New(interval time.Duration) *Warner {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Warner{
		interval: interval,
		counters: make(map[Category]*counter),
	}
}

func (w *Warner) counterFor(cat Category) *counter {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.counters[cat]
	if !ok {
		c = &counter{limiter: rate.NewLimiter(rate.Every(w.interval), 1)}
		w.counters[cat] = c
	}
	return c
}

// RecordDrop atomically increments the per-category drop counter.
func (w *Warner) RecordDrop(cat Category) {
	w.counterFor(cat).dropped.Add(1)
}

// WarnIfDue emits at most one warning per category per interval, carrying
// the accumulated count since the last emission, then resets the counter.
// emit receives the category and the accumulated count.
func (w *Warner) WarnIfDue(cat Category, emit func(Category, uint64)) {
	c := w.counterFor(cat)
	if !c.limiter.Allow() {
		return
	}
	count := c.dropped.Swap(0)
	if count == 0 {
		return
	}
	emit(cat, count)
}

// Interval returns the coalescing window this Warner was built with.
func (w *Warner) Interval() time.Duration { return w.interval }

// PollDue checks every category that has ever recorded a drop and emits
// whichever ones are due under their own rate limiter. Intended to be
// called on a ticker matching Interval, rather than inline with each
// drop, so the coalescing window governs how often the diagnostic log
// sees a burst of drops rather than how often a producer happens to call
// RecordDrop.
func (w *Warner) PollDue(emit func(Category, uint64)) {
	w.mu.Lock()
	cats := make([]Category, 0, len(w.counters))
	for cat := range w.counters {
		cats = append(cats, cat)
	}
	w.mu.Unlock()

	for _, cat := range cats {
		w.WarnIfDue(cat, emit)
	}
}

// Flush unconditionally emits any nonzero counters, used on shutdown so a
// final burst of drops is never silently lost.
func (w *Warner) Flush(emit func(Category, uint64)) {
	w.mu.Lock()
	cats := make([]Category, 0, len(w.counters))
	for cat := range w.counters {
		cats = append(cats, cat)
	}
	w.mu.Unlock()

	for _, cat := range cats {
		c := w.counterFor(cat)
		count := c.dropped.Swap(0)
		if count > 0 {
			emit(cat, count)
		}
	}
}
