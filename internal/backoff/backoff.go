// Package backoff implements the exponential-backoff reconnection state
// machine shared by the socket and HTTP handlers (spec.md 4.I, reused
// verbatim by 4.J), grounded on
// original_source/rust_extension/src/socket_handler/{backoff,config}.rs.
package backoff

import (
	"math/rand"
	"time"
)

// Policy parameterizes the state machine.
type Policy struct {
	Base       time.Duration
	Cap        time.Duration
	ResetAfter time.Duration
	Deadline   time.Duration
}

// DefaultPolicy matches spec.md's defaults: 100ms, 10s, 30s, 120s.
func DefaultPolicy() Policy {
	return Policy{
		Base:       100 * time.Millisecond,
		Cap:        10 * time.Second,
		ResetAfter: 30 * time.Second,
		Deadline:   120 * time.Second,
	}
}

const minSleep = 10 * time.Millisecond

// State tracks reconnection attempts and produces jittered delays. It is
// meant to be owned exclusively by a single worker goroutine: no locking.
type State struct {
	Policy       Policy
	current      time.Duration
	failureSince time.Time // zero value means "no failure in progress"
	lastSuccess  time.Time
	rng          *rand.Rand
}

// New builds a State starting at Policy.Base.
func New(policy Policy) *State {
	return &State{
		Policy:  policy,
		current: policy.Base,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Current returns the present delay ceiling (pre-jitter), mostly useful
// to tests asserting on the monotonic sequence rather than jittered
// samples.
func (b *State) Current() time.Duration { return b.current }

// RecordSuccess resets the delay to Base once reset_after has elapsed
// since the first failure in the current run.
func (b *State) RecordSuccess(now time.Time) {
	b.lastSuccess = now
	if !b.failureSince.IsZero() && now.Sub(b.failureSince) >= b.Policy.ResetAfter {
		b.current = b.Policy.Base
		b.failureSince = time.Time{}
	}
}

// ResetAfterIdle resets the delay to Base once the connection has been
// healthy (no new failure_since) for reset_after since the last success.
func (b *State) ResetAfterIdle(now time.Time) {
	if !b.lastSuccess.IsZero() && now.Sub(b.lastSuccess) >= b.Policy.ResetAfter {
		b.current = b.Policy.Base
		b.failureSince = time.Time{}
		b.lastSuccess = time.Time{}
	}
}

// NextSleep computes the next jittered sleep duration following a failure
// at now. ok is false once the reconnection deadline (measured from the
// first failure in this run) has elapsed.
func (b *State) NextSleep(now time.Time) (d time.Duration, ok bool) {
	first := b.failureSince.IsZero()
	if first {
		b.failureSince = now
	}

	if now.Sub(b.failureSince) >= b.Policy.Deadline {
		return 0, false
	}
	if !first {
		b.current = minDur(b.current*2, b.Policy.Cap)
	}

	max := b.current
	if max <= minSleep {
		return max, true
	}
	jitterRange := int64(max - minSleep)
	return minSleep + time.Duration(b.rng.Int63n(jitterRange+1)), true
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
