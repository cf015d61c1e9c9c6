package logger

import (
	"sync"
	"testing"

	"femtolog/internal/filter"
	"femtolog/internal/record"
	"femtolog/internal/worker"
)

// recordingHandler is a worker.Consumer-free test double: it implements
// handler.Handler directly, bypassing the real worker runtime so tests
// can assert on what the logger dispatched without timing concerns.
type recordingHandler struct {
	mu   sync.Mutex
	recs []record.Record
}

func (h *recordingHandler) Enqueue(r record.Record, _ worker.Overflow) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recs = append(h.recs, r)
	return nil
}
func (h *recordingHandler) Flush() bool { return true }
func (h *recordingHandler) Close()      {}

func (h *recordingHandler) snapshot() []record.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]record.Record(nil), h.recs...)
}

func TestLevelGateBlocksBelowEffectiveLevel(t *testing.T) {
	root := New("root", nil)
	root.SetLevel(record.Warn)
	h := &recordingHandler{}
	root.AddHandler(h)

	if root.Log(record.Info, "too quiet") {
		t.Fatalf("Log at Info under a Warn gate should return false")
	}
	if len(h.snapshot()) != 0 {
		t.Fatalf("handler should not have received a gated-out record")
	}
	if !root.Log(record.Error, "loud enough") {
		t.Fatalf("Log at Error under a Warn gate should return true")
	}
	if len(h.snapshot()) != 1 {
		t.Fatalf("handler should have received exactly one record")
	}
}

func TestEffectiveLevelInheritsFromNearestAncestor(t *testing.T) {
	root := New("root", nil)
	root.SetLevel(record.Error)
	child := New("root.child", root)
	grandchild := New("root.child.grand", child)

	if got := grandchild.EffectiveLevel(); got != record.Error {
		t.Fatalf("effective level = %v, want inherited %v", got, record.Error)
	}
	child.SetLevel(record.Debug)
	if got := grandchild.EffectiveLevel(); got != record.Debug {
		t.Fatalf("effective level = %v, want %v after child override", got, record.Debug)
	}
}

func TestPropagationReachesAncestorsWithoutReapplyingLevelGate(t *testing.T) {
	root := New("root", nil)
	root.SetLevel(record.Critical) // would block if re-applied to a child log call
	rootHandler := &recordingHandler{}
	root.AddHandler(rootHandler)

	child := New("root.child", root)
	child.SetLevel(record.Info)
	childHandler := &recordingHandler{}
	child.AddHandler(childHandler)

	if !child.Log(record.Info, "propagates up") {
		t.Fatalf("child.Log at Info should pass the child's own gate")
	}
	if len(childHandler.snapshot()) != 1 {
		t.Fatalf("child handler should have received the record")
	}
	if len(rootHandler.snapshot()) != 1 {
		t.Fatalf("root handler should have received the propagated record despite root's own Critical level")
	}
}

func TestPropagateFalseStopsAtOrigin(t *testing.T) {
	root := New("root", nil)
	rootHandler := &recordingHandler{}
	root.AddHandler(rootHandler)

	child := New("root.child", root)
	child.SetPropagate(false)
	childHandler := &recordingHandler{}
	child.AddHandler(childHandler)

	child.Log(record.Info, "stays local")
	if len(childHandler.snapshot()) != 1 {
		t.Fatalf("child handler should have received the record")
	}
	if len(rootHandler.snapshot()) != 0 {
		t.Fatalf("root handler should not receive a record when propagate=false")
	}
}

func TestDisabledLoggerEmitsNothing(t *testing.T) {
	root := New("root", nil)
	h := &recordingHandler{}
	root.AddHandler(h)
	root.SetDisabled(true)

	if root.Log(record.Critical, "should be suppressed") {
		t.Fatalf("Log on a disabled logger should return false")
	}
	if len(h.snapshot()) != 0 {
		t.Fatalf("disabled logger must not dispatch to its handlers")
	}
}

func TestAddHandlerDedupesByIdentity(t *testing.T) {
	root := New("root", nil)
	h := &recordingHandler{}
	root.AddHandler(h)
	root.AddHandler(h)

	root.Log(record.Info, "once")
	if got := len(h.snapshot()); got != 1 {
		t.Fatalf("handler attached twice should still receive exactly one record per Log call, got %d", got)
	}
}

func TestFilterChainRejectsRecord(t *testing.T) {
	root := New("root", nil)
	h := &recordingHandler{}
	root.AddHandler(h)
	root.AddFilter(filter.Name("other"))

	root.Log(record.Info, "rejected by name filter")
	if len(h.snapshot()) != 0 {
		t.Fatalf("a record failing the filter chain must never reach handlers")
	}
}
