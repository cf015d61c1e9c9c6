package manager

import (
	"sync"
	"testing"

	"femtolog/internal/record"
	"femtolog/internal/worker"
)

type stubHandler struct {
	mu     sync.Mutex
	closed bool
}

func (h *stubHandler) Enqueue(record.Record, worker.Overflow) error { return nil }
func (h *stubHandler) Flush() bool                                  { return true }
func (h *stubHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}
func (h *stubHandler) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func TestGetLoggerCreatesDottedAncestors(t *testing.T) {
	m := New()
	grand := m.GetLogger("a.b.c")
	b := m.GetLogger("a.b")
	a := m.GetLogger("a")

	if grand.Parent() != b {
		t.Fatalf("a.b.c's parent should be a.b")
	}
	if b.Parent() != a {
		t.Fatalf("a.b's parent should be a")
	}
	if a.Parent() != m.Root() {
		t.Fatalf("a's parent should be root")
	}
}

func TestGetLoggerReturnsSameInstanceOnRepeatedLookup(t *testing.T) {
	m := New()
	first := m.GetLogger("svc.worker")
	second := m.GetLogger("svc.worker")
	if first != second {
		t.Fatalf("repeated GetLogger calls for the same name must return the same instance")
	}
}

func TestGetLoggerRootLiteralReturnsSingletonRoot(t *testing.T) {
	m := New()
	if got := m.GetLogger("root"); got != m.Root() {
		t.Fatalf("GetLogger(\"root\") must return the singleton root, not a new logger")
	}
	child := m.GetLogger("root.child")
	if child.Parent() != m.Root() {
		t.Fatalf("root.child's parent should be the real root, not a logger literally named \"root\"")
	}
	if len(m.Loggers()) != 1 {
		t.Fatalf("GetLogger(\"root\") must not register a spurious logger named \"root\"")
	}
}

func TestResetClosesHandlersOnceAndReinstallsBareRoot(t *testing.T) {
	m := New()
	shared := &stubHandler{}

	a := m.GetLogger("svc.a")
	b := m.GetLogger("svc.b")
	a.AddHandler(shared)
	b.AddHandler(shared)

	oldRoot := m.Root()
	m.Reset()

	if !shared.isClosed() {
		t.Fatalf("shared handler should have been closed on reset")
	}
	if m.Root() == oldRoot {
		t.Fatalf("reset should install a fresh root instance")
	}
	if len(m.Loggers()) != 0 {
		t.Fatalf("reset should clear every registered logger")
	}
	if got := m.Root().EffectiveLevel(); got != record.Info {
		t.Fatalf("reset root effective level = %v, want %v", got, record.Info)
	}
}
