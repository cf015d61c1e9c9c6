// Package configwatch hot-reloads a configbuilder.Config from disk on
// file-change notifications, following the teacher's pattern of a
// context-driven background goroutine with signal-aware shutdown (see
// cmd/etl/main.go's signal.NotifyContext use) adapted to fsnotify events
// instead of OS signals.
package configwatch

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"femtolog/internal/configbuilder"
	"femtolog/internal/configfile"
	"femtolog/internal/diag"
	"femtolog/internal/manager"
	"femtolog/internal/warner"
)

// DefaultDebounce coalesces the burst of events a single save often
// produces (write + chmod + rename on some editors) into one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads path into mgr whenever it changes on disk.
type Watcher struct {
	path     string
	mgr      *manager.Manager
	warner   *warner.Warner
	debounce time.Duration
	onError  func(error)
	onReload func(*configbuilder.Config)

	fsw *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option { return func(w *Watcher) { w.debounce = d } }

// WithOnError registers a callback invoked when a reload attempt fails;
// the previously-applied configuration is left in place (spec.md 4.M's
// atomicity guarantee means a bad reload can never half-apply).
func WithOnError(f func(error)) Option { return func(w *Watcher) { w.onError = f } }

// WithOnReload registers a callback invoked after every successful reload.
func WithOnReload(f func(*configbuilder.Config)) Option {
	return func(w *Watcher) { w.onReload = f }
}

// New builds a Watcher for path, performing one synchronous initial load
// before watching begins so callers observe a fully-configured manager
// before New returns.
func New(path string, mgr *manager.Manager, w *warner.Warner, opts ...Option) (*Watcher, error) {
	watcher := &Watcher{
		path:     path,
		mgr:      mgr,
		warner:   w,
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(watcher)
	}

	if err := watcher.reload(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, err
	}
	watcher.fsw = fsw
	return watcher, nil
}

func (w *Watcher) reload() error {
	cfg, err := configfile.Load(w.path)
	if err != nil {
		return err
	}
	if err := configbuilder.Build(cfg, w.mgr, w.warner); err != nil {
		return err
	}
	if w.onReload != nil {
		w.onReload(cfg)
	}
	return nil
}

// Run blocks, reloading on every debounced file-change event, until ctx
// is cancelled. Close the Watcher's fsnotify handle by cancelling ctx,
// not by calling any method concurrently with Run.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	var pending *time.Timer
	fire := func() {
		if err := w.reload(); err != nil {
			diag.Warn("config reload failed, keeping previous configuration", "path", w.path, "error", err)
			if w.onError != nil {
				w.onError(err)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Rename != 0 {
				// Atomic-save editors replace the file rather than write
				// it in place, which drops the inode fsnotify was
				// watching; re-arm on the original path.
				w.fsw.Remove(w.path)
				if err := w.fsw.Add(w.path); err != nil {
					diag.Warn("failed to re-watch config after rename", "path", w.path, "error", err)
				}
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(w.debounce, fire)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			diag.Warn("config watcher error", "path", w.path, "error", err)
		}
	}
}
