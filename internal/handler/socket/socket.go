// Package socket implements the socket handler (spec.md 4.I): a worker
// that frames and writes records to a TCP, TLS, or Unix-domain socket,
// reconnecting with exponential backoff across drops rather than
// buffering across outages.
package socket

import (
	"context"
	"net"
	"time"

	"femtolog/internal/backoff"
	"femtolog/internal/ferrors"
	"femtolog/internal/record"
	"femtolog/internal/warner"
	"femtolog/internal/worker"
)

// DefaultMaxFrameSize bounds a single encoded payload before it is dropped
// with a FrameTooLarge warning rather than written.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// DefaultConnectTimeout bounds a single Dial attempt.
const DefaultConnectTimeout = 5 * time.Second

// DefaultWriteTimeout bounds a single frame write once connected.
const DefaultWriteTimeout = 5 * time.Second

// Handler writes framed records to a Transport, reconnecting on demand.
// The connection, backoff state, and "next attempt" gate are all owned
// exclusively by the worker goroutine; no locking is needed there.
type Handler struct {
	rt *worker.Runtime[record.Record]

	transport      Transport
	connectTimeout time.Duration
	writeTimeout   time.Duration
	maxFrameSize   int

	warner *warner.Warner

	conn        net.Conn
	backoff     *backoff.State
	nextAttempt time.Time // zero means "try now"
}

type config struct {
	capacity       int
	flushTimeout   time.Duration
	connectTimeout time.Duration
	writeTimeout   time.Duration
	maxFrameSize   int
	backoffPolicy  BackoffPolicy
	warner         *warner.Warner
}

// Option configures a Handler at construction time.
type Option func(*config)

func WithCapacity(n int) Option { return func(c *config) { c.capacity = n } }

func WithFlushTimeout(d time.Duration) Option { return func(c *config) { c.flushTimeout = d } }

func WithConnectTimeout(d time.Duration) Option { return func(c *config) { c.connectTimeout = d } }

func WithWriteTimeout(d time.Duration) Option { return func(c *config) { c.writeTimeout = d } }

func WithMaxFrameSize(n int) Option { return func(c *config) { c.maxFrameSize = n } }

func WithBackoffPolicy(p BackoffPolicy) Option { return func(c *config) { c.backoffPolicy = p } }

func WithWarner(w *warner.Warner) Option { return func(c *config) { c.warner = w } }

// New starts a socket handler's worker goroutine against transport. The
// first connect attempt happens lazily, on the worker goroutine, when the
// first record arrives.
func New(transport Transport, opts ...Option) *Handler {
	cfg := config{
		capacity:       worker.DefaultCapacity,
		flushTimeout:   worker.DefaultFlushTimeout,
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
		maxFrameSize:   DefaultMaxFrameSize,
		backoffPolicy:  DefaultBackoffPolicy(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	h := &Handler{
		transport:      transport,
		connectTimeout: cfg.connectTimeout,
		writeTimeout:   cfg.writeTimeout,
		maxFrameSize:   cfg.maxFrameSize,
		backoff:        backoff.New(cfg.backoffPolicy),
		warner:         cfg.warner,
	}
	h.rt = worker.New[record.Record](cfg.capacity, h, cfg.warner, cfg.flushTimeout)
	return h
}

func (h *Handler) Enqueue(r record.Record, policy worker.Overflow) error {
	return h.rt.Enqueue(r, policy)
}

func (h *Handler) Flush() bool { return h.rt.Flush() }

func (h *Handler) Close() { h.rt.Close() }

// tryConnect dials transport if currently disconnected and the backoff
// gate has elapsed. It never blocks the caller beyond connectTimeout.
func (h *Handler) tryConnect() bool {
	if h.conn != nil {
		return true
	}
	now := time.Now()
	if !h.nextAttempt.IsZero() && now.Before(h.nextAttempt) {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.connectTimeout)
	defer cancel()
	conn, err := h.transport.Dial(ctx, h.connectTimeout)
	if err != nil {
		h.scheduleRetry(now)
		return false
	}

	h.conn = conn
	h.backoff.RecordSuccess(now)
	h.nextAttempt = time.Time{}
	return true
}

// scheduleRetry advances the backoff state and sets nextAttempt, so that
// subsequent records arriving before the gate elapses are dropped without
// paying for another Dial attempt.
func (h *Handler) scheduleRetry(now time.Time) {
	d, ok := h.backoff.NextSleep(now)
	if !ok {
		// Past deadline: keep retrying, paced no tighter than Base, per
		// spec.md's stated default ("continue dropping with warnings
		// until a future connect succeeds") rather than a permanent
		// transition to a closed state.
		d = h.backoff.Policy.Base
	}
	h.nextAttempt = now.Add(d)
}

// HandleRecord implements worker.Consumer.
func (h *Handler) HandleRecord(r record.Record) error {
	h.backoff.ResetAfterIdle(time.Now())

	if !h.tryConnect() {
		h.recordDrop(warner.CategoryDisconnected)
		return nil
	}

	payload := Encode(r)
	if len(payload) > h.maxFrameSize {
		h.recordDrop(warner.CategoryFrameTooLarge)
		return ferrors.ErrFrameTooLarge
	}

	h.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := WriteFrame(h.conn, payload); err != nil {
		h.conn.Close()
		h.conn = nil
		h.recordDrop(warner.CategoryWriteError)
		h.scheduleRetry(time.Now())
		return err
	}
	return nil
}

func (h *Handler) recordDrop(cat warner.Category) {
	if h.warner != nil {
		h.warner.RecordDrop(cat)
	}
}

// HandleFlush implements worker.Consumer. The socket handler has no
// internal buffering beyond the OS socket send buffer, so flush is a
// no-op beyond giving the queue a synchronization point.
func (h *Handler) HandleFlush() error { return nil }

// HandleShutdown implements worker.Consumer: closes the connection if one
// is open.
func (h *Handler) HandleShutdown() error {
	if h.conn != nil {
		err := h.conn.Close()
		h.conn = nil
		return err
	}
	return nil
}
