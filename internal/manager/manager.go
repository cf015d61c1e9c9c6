// Package manager implements the process-wide logger registry (spec.md
// 4.L): name-to-Logger lookup with dotted-name parent resolution, and a
// reset operation that tears down every handler before reinstalling a
// bare root.
package manager

import (
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"femtolog/internal/handler"
	"femtolog/internal/logger"
	"femtolog/internal/record"
)

// Manager is a registry of loggers keyed by dotted name. The zero value
// is not usable; construct with New.
type Manager struct {
	mu      sync.RWMutex
	root    *logger.Logger
	loggers map[string]*logger.Logger
}

// rootName is the literal name of the single root logger (spec.md 3).
const rootName = "root"

// New builds a Manager with a bare root logger at the default level
// (record.Info).
func New() *Manager {
	m := &Manager{loggers: make(map[string]*logger.Logger)}
	m.root = logger.New(rootName, nil)
	m.root.SetLevel(record.Info)
	return m
}

// Root returns the manager's root logger.
func (m *Manager) Root() *logger.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.root
}

// GetLogger returns the logger named name, creating it (and wiring its
// parent to the longest known ancestor, else root) if it does not yet
// exist. The literal name "root" (and, for convenience, "") always refers
// to the single root logger.
func (m *Manager) GetLogger(name string) *logger.Logger {
	if name == "" || name == rootName {
		return m.Root()
	}

	m.mu.RLock()
	if l, ok := m.loggers[name]; ok {
		m.mu.RUnlock()
		return l
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	// Re-check under the write lock: another writer may have created it
	// between the RUnlock above and this Lock.
	if l, ok := m.loggers[name]; ok {
		return l
	}
	return m.getOrCreateLocked(name)
}

// getOrCreateLocked requires the write lock to already be held. It
// resolves name's parent by walking dotted-name ancestors, creating any
// missing intermediate loggers along the way (standard dotted-hierarchy
// behavior: "a.b.c" with no "a.b" registered yet creates "a" and "a.b"
// too, each parented to the next-shortest known ancestor).
func (m *Manager) getOrCreateLocked(name string) *logger.Logger {
	if name == "" || name == rootName {
		return m.root
	}
	if l, ok := m.loggers[name]; ok {
		return l
	}

	parent := m.root
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		parent = m.getOrCreateLocked(name[:idx])
	}

	l := logger.New(name, parent)
	m.loggers[name] = l
	return l
}

// Loggers returns a snapshot of every registered non-root logger name.
func (m *Manager) Loggers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.loggers))
	for name := range m.loggers {
		names = append(names, name)
	}
	return names
}

// Reset tears down every registered logger (closing its attached
// handlers) and reinstalls a bare root at the default level. Handlers
// shared across loggers are closed once per distinct instance, and every
// distinct handler is closed concurrently: Close can block draining its
// own queue and flushing its sink, so closing serially would sum each
// handler's shutdown latency instead of bounding it by the slowest one.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[handler.Handler]struct{})
	collect := func(l *logger.Logger) {
		for _, h := range l.Handlers() {
			seen[h] = struct{}{}
		}
	}
	collect(m.root)
	for _, l := range m.loggers {
		collect(l)
	}

	var grp errgroup.Group
	for h := range seen {
		h := h
		grp.Go(func() error {
			h.Close()
			return nil
		})
	}
	grp.Wait()

	m.loggers = make(map[string]*logger.Logger)
	m.root = logger.New(rootName, nil)
	m.root.SetLevel(record.Info)
}
