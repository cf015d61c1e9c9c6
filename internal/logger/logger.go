// Package logger implements the logger hierarchy (spec.md 4.K): dotted
// names, parent resolution, effective-level inheritance, and the
// gate-once-at-origin propagation algorithm.
package logger

import (
	"sync"

	"femtolog/internal/filter"
	"femtolog/internal/handler"
	"femtolog/internal/record"
	"femtolog/internal/worker"
)

// Logger is one node in the hierarchy. The zero value is not usable;
// construct via the manager package's GetLogger.
type Logger struct {
	name   string
	parent *Logger

	mu        sync.Mutex
	level     record.Severity
	hasLevel  bool // false means "inherit from parent"
	handlers  []binding
	filters   *filter.Chain
	propagate bool
	disabled  bool
}

// New constructs a detached logger node. The manager is the usual entry
// point; this is exported for tests and for building the bare root.
func New(name string, parent *Logger) *Logger {
	return &Logger{
		name:      name,
		parent:    parent,
		filters:   filter.NewChain(),
		propagate: true,
	}
}

func (l *Logger) Name() string { return l.name }

func (l *Logger) Parent() *Logger { return l.parent }

// SetLevel sets this logger's own level, overriding inheritance.
func (l *Logger) SetLevel(sev record.Severity) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = sev
	l.hasLevel = true
}

// ClearLevel reverts to inheriting the parent's effective level.
func (l *Logger) ClearLevel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hasLevel = false
}

// EffectiveLevel walks up the parent chain to the nearest logger with an
// explicit level; a root with no explicit level defaults to Info.
func (l *Logger) EffectiveLevel() record.Severity {
	for cur := l; cur != nil; cur = cur.parent {
		cur.mu.Lock()
		if cur.hasLevel {
			sev := cur.level
			cur.mu.Unlock()
			return sev
		}
		cur.mu.Unlock()
	}
	return record.Info
}

// SetPropagate toggles whether records also flow to the parent.
func (l *Logger) SetPropagate(p bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.propagate = p
}

// SetDisabled toggles whether this logger ever emits, per manager
// reset/disable_existing_loggers semantics.
func (l *Logger) SetDisabled(d bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.disabled = d
}

func (l *Logger) Disabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disabled
}

// AddFilter appends f to this logger's filter chain.
func (l *Logger) AddFilter(f filter.Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters.Add(f)
}

// SetFilters replaces this logger's filter chain wholesale (used by the
// config builder, which always sets filters by replacement, never by
// append, per spec.md 4.M step 5).
func (l *Logger) SetFilters(fs []filter.Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filters = filter.NewChain()
	for _, f := range fs {
		l.filters.Add(f)
	}
}

// binding pairs an attached handler with the overflow policy this logger
// uses to enqueue into it; the policy is a property of how the handler
// was configured (spec.md 4.M's handler pool), not of the logger, but it
// travels with the attachment since Enqueue takes it per call.
type binding struct {
	h      handler.Handler
	policy worker.Overflow
}

// AddHandler attaches h under the Drop overflow policy, deduplicating by
// identity (pointer equality): attaching the same instance twice is a
// no-op, matching spec.md's "unique by identity" handler-list rule.
func (l *Logger) AddHandler(h handler.Handler) {
	l.AddHandlerWithPolicy(h, worker.DropPolicy())
}

// AddHandlerWithPolicy attaches h using the given overflow policy in
// place of the Drop default; used by the config builder, which knows
// each handler's configured policy.
func (l *Logger) AddHandlerWithPolicy(h handler.Handler, policy worker.Overflow) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, existing := range l.handlers {
		if existing.h == h {
			return
		}
	}
	l.handlers = append(l.handlers, binding{h: h, policy: policy})
}

// RemoveHandler detaches h by identity; a no-op if h is not attached.
func (l *Logger) RemoveHandler(h handler.Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.handlers {
		if existing.h == h {
			l.handlers = append(l.handlers[:i], l.handlers[i+1:]...)
			return
		}
	}
}

// SetHandlers replaces the handler list wholesale under the Drop
// overflow policy.
func (l *Logger) SetHandlers(hs []handler.Handler) {
	bindings := make([]binding, len(hs))
	for i, h := range hs {
		bindings[i] = binding{h: h, policy: worker.DropPolicy()}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = bindings
}

// HandlerBinding pairs a handler with the overflow policy Log dispatch
// uses when enqueuing into it.
type HandlerBinding struct {
	Handler handler.Handler
	Policy  worker.Overflow
}

// SetHandlerBindings replaces the handler list wholesale with explicit
// per-handler overflow policies (config builder).
func (l *Logger) SetHandlerBindings(bs []HandlerBinding) {
	bindings := make([]binding, len(bs))
	for i, b := range bs {
		bindings[i] = binding{h: b.Handler, policy: b.Policy}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = bindings
}

// Handlers returns a snapshot of this logger's attached handlers, used
// by the manager's Reset to close every handler it finds.
func (l *Logger) Handlers() []handler.Handler {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]handler.Handler, len(l.handlers))
	for i, b := range l.handlers {
		out[i] = b.h
	}
	return out
}

// ClearHandlers detaches every handler without closing them: ownership
// of the underlying worker lifetime belongs to whoever constructed the
// handler (often shared across loggers), not to this call.
func (l *Logger) ClearHandlers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers = nil
}

// snapshot copies out the fields log() needs under the lock, so the
// actual enqueue/recursion work happens lock-free.
type snapshot struct {
	disabled  bool
	filters   *filter.Chain
	handlers  []binding
	propagate bool
	parent    *Logger
}

func (l *Logger) snapshot() snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return snapshot{
		disabled:  l.disabled,
		filters:   l.filters,
		handlers:  append([]binding(nil), l.handlers...),
		propagate: l.propagate,
		parent:    l.parent,
	}
}

// Log runs spec.md 4.K's log() algorithm: gate on level/disabled at the
// origin only, then walk filters/handlers/propagation up the chain. ok
// reports whether the record passed gating and was dispatched to at
// least the originating logger's own chain (the "cheap sentinel" the
// spec calls for).
func (l *Logger) Log(sev record.Severity, message string) bool {
	if l.Disabled() || sev < l.EffectiveLevel() {
		return false
	}
	rec := record.New(l.name, sev, message)
	return l.dispatch(rec)
}

// LogRecord dispatches a fully built record (fields already attached),
// still subject to the origin's level/disabled gate.
func (l *Logger) LogRecord(r record.Record) bool {
	if l.Disabled() || r.Severity < l.EffectiveLevel() {
		return false
	}
	return l.dispatch(r)
}

// dispatch implements steps 3-5: filter, enqueue to handlers, propagate.
// Level gating is intentionally not repeated at each hop: the spec's
// convention is that the initial gate at the originating logger is the
// only level check in the chain. It returns false only when the
// originating logger's own filter chain rejects r.
func (l *Logger) dispatch(r record.Record) bool {
	for cur := l; cur != nil; {
		snap := cur.snapshot()
		if snap.disabled {
			return cur != l
		}
		if !snap.filters.ShouldLog(r) {
			return cur != l
		}
		for _, b := range snap.handlers {
			// Drop accounting for a full/closed queue already happens
			// inside the handler's own runtime/warner; nothing further
			// to do with the error here.
			b.h.Enqueue(r.Clone(), b.policy)
		}
		if !snap.propagate {
			return true
		}
		cur = snap.parent
	}
	return true
}
