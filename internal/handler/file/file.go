// Package file implements the file handler (spec.md 4.G): a buffered
// append+create file writer with a pluggable rotation strategy, periodic
// flush, and a start barrier hook tests use to pin down ordering.
package file

import (
	"bufio"
	"os"
	"sync"
	"time"

	"femtolog/internal/handler/rotate"
	"femtolog/internal/record"
	"femtolog/internal/warner"
	"femtolog/internal/worker"
)

// Handler buffers formatted lines to a file opened append+create, flushing
// every FlushInterval writes (0 disables automatic flush) and invoking a
// Strategy.BeforeWrite hook ahead of every line so rotation always runs on
// the worker goroutine, never the producer.
type Handler struct {
	rt        *worker.Runtime[record.Record]
	formatter record.Formatter
	f         *os.File
	bw        *bufio.Writer
	strategy  rotate.Strategy

	flushInterval int
	writeCount    int

	startOnce    sync.Once
	startBarrier <-chan struct{}
}

type config struct {
	capacity      int
	flushTimeout  time.Duration
	flushInterval int
	formatter     record.Formatter
	strategy      rotate.Strategy
	warner        *warner.Warner
	startBarrier  <-chan struct{}
}

// Option configures a Handler at construction time.
type Option func(*config)

func WithCapacity(n int) Option { return func(c *config) { c.capacity = n } }

func WithFlushTimeout(d time.Duration) Option { return func(c *config) { c.flushTimeout = d } }

// WithFlushInterval sets the number of writes between automatic flushes;
// 0 disables automatic flushing (an explicit Flush() still flushes).
func WithFlushInterval(n int) Option { return func(c *config) { c.flushInterval = n } }

func WithFormatter(f record.Formatter) Option { return func(c *config) { c.formatter = f } }

func WithRotation(s rotate.Strategy) Option { return func(c *config) { c.strategy = s } }

func WithWarner(w *warner.Warner) Option { return func(c *config) { c.warner = w } }

// WithStartBarrier delays the first HandleRecord call until ch is closed.
// Test-only: lets a test pause the worker deterministically before it
// begins consuming, so it can assert on queue-full behaviour without a
// race against the worker's own drain speed.
func WithStartBarrier(ch <-chan struct{}) Option { return func(c *config) { c.startBarrier = ch } }

// New opens path for append (creating it if needed) and starts the
// handler's worker goroutine.
func New(path string, opts ...Option) (*Handler, error) {
	cfg := config{
		capacity:     worker.DefaultCapacity,
		flushTimeout: worker.DefaultFlushTimeout,
		formatter:    record.Default,
		strategy:     rotate.Noop{},
	}
	for _, o := range opts {
		o(&cfg)
	}

	// Read access is needed too: rotate.Size copies the live file into its
	// first backup before truncating it.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}

	h := &Handler{
		formatter:     cfg.formatter,
		f:             f,
		bw:            bufio.NewWriter(f),
		strategy:      cfg.strategy,
		flushInterval: cfg.flushInterval,
		startBarrier:  cfg.startBarrier,
	}
	h.rt = worker.New[record.Record](cfg.capacity, h, cfg.warner, cfg.flushTimeout)
	return h, nil
}

func (h *Handler) Enqueue(r record.Record, policy worker.Overflow) error {
	return h.rt.Enqueue(r, policy)
}

func (h *Handler) Flush() bool { return h.rt.Flush() }

func (h *Handler) Close() { h.rt.Close() }

// HandleRecord implements worker.Consumer.
func (h *Handler) HandleRecord(r record.Record) error {
	h.startOnce.Do(func() {
		if h.startBarrier != nil {
			<-h.startBarrier
		}
	})

	line := h.formatter.Format(r) + "\n"
	if err := h.strategy.BeforeWrite(h.f, h.bw.Flush, int64(h.bw.Buffered()), int64(len(line))); err != nil {
		return err
	}

	if _, err := h.bw.WriteString(line); err != nil {
		return err
	}
	h.writeCount++
	if h.flushInterval > 0 && h.writeCount%h.flushInterval == 0 {
		return h.bw.Flush()
	}
	return nil
}

// HandleFlush implements worker.Consumer: flushes and resets the writes-
// since-last-flush counter.
func (h *Handler) HandleFlush() error {
	h.writeCount = 0
	return h.bw.Flush()
}

// HandleShutdown implements worker.Consumer: final flush before exit.
func (h *Handler) HandleShutdown() error {
	err := h.bw.Flush()
	if cerr := h.f.Close(); err == nil {
		err = cerr
	}
	return err
}
