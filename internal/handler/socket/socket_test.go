package socket

import (
	"net"
	"testing"
	"time"

	"femtolog/internal/backoff"
	"femtolog/internal/record"
	"femtolog/internal/warner"
	"femtolog/internal/worker"
)

// TestRoundTrip mirrors spec.md scenario S7: a TCP transport to a test
// listener receives a single record's frame, and the decoded payload
// matches the fields the record was built with.
func TestRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	frameCh := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		payload, err := ReadFrame(conn)
		if err != nil {
			return
		}
		frameCh <- payload
	}()

	addr := ln.Addr().(*net.TCPAddr)
	transport := TCPTransport{Host: "127.0.0.1", Port: addr.Port}
	h := New(transport, WithWarner(warner.New(0)))
	defer h.Close()

	r := record.New("test", record.Info, "message")
	if err := h.Enqueue(r, worker.BlockPolicy()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !h.Flush() {
		t.Fatalf("flush did not ack")
	}

	select {
	case payload := <-frameCh:
		decoded, err := Decode(payload)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Logger != "test" {
			t.Fatalf("logger = %q, want %q", decoded.Logger, "test")
		}
		if decoded.Level != "INFO" {
			t.Fatalf("level = %q, want %q", decoded.Level, "INFO")
		}
		if decoded.Message != "message" {
			t.Fatalf("message = %q, want %q", decoded.Message, "message")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for frame")
	}
}

// TestBackoffMonotonic mirrors spec.md invariant 7: successive failure
// delays before any success form a non-decreasing sequence clamped at
// cap, and recordSuccess after reset_after restores delay to base.
func TestBackoffMonotonic(t *testing.T) {
	policy := BackoffPolicy{
		Base:       10 * time.Millisecond,
		Cap:        80 * time.Millisecond,
		ResetAfter: time.Hour,
		Deadline:   time.Hour,
	}
	b := backoff.New(policy)

	// Jitter means individual sampled delays aren't themselves monotonic;
	// the invariant is on the ceiling (b.current), which must never
	// exceed cap and must double (until clamped) on each failure.
	now := time.Unix(0, 0)
	for i := 0; i < 6; i++ {
		d, ok := b.NextSleep(now)
		if !ok {
			t.Fatalf("unexpected deadline exceeded at iteration %d", i)
		}
		if b.Current() > policy.Cap {
			t.Fatalf("iteration %d: current=%v exceeds cap=%v", i, b.Current(), policy.Cap)
		}
		now = now.Add(d)
	}
	if b.Current() != policy.Cap {
		t.Fatalf("current = %v, want clamped at cap %v", b.Current(), policy.Cap)
	}

	b.RecordSuccess(now.Add(policy.ResetAfter))
	if b.Current() != policy.Base {
		t.Fatalf("current after reset = %v, want base %v", b.Current(), policy.Base)
	}
}

// TestDisconnectedDropsWithoutBlocking verifies that a record enqueued
// while no listener is reachable does not stall the worker: Enqueue
// succeeds and Flush still acks. The CategoryDisconnected drop count is
// not asserted here.
func TestDisconnectedDropsWithoutBlocking(t *testing.T) {
	// Port 1 is reserved and will refuse immediately on most systems;
	// using a short connect timeout keeps the test fast regardless.
	transport := TCPTransport{Host: "127.0.0.1", Port: 1}
	w := warner.New(time.Millisecond)
	h := New(transport,
		WithWarner(w),
		WithConnectTimeout(50*time.Millisecond),
		WithBackoffPolicy(BackoffPolicy{
			Base: time.Millisecond, Cap: 10 * time.Millisecond,
			ResetAfter: time.Hour, Deadline: time.Hour,
		}),
	)
	defer h.Close()

	r := record.New("test", record.Warn, "unreachable")
	if err := h.Enqueue(r, worker.BlockPolicy()); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !h.Flush() {
		t.Fatalf("flush did not ack despite unreachable transport")
	}
}
