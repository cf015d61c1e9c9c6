package socket

import "femtolog/internal/backoff"

// BackoffPolicy and DefaultBackoffPolicy are re-exported here so callers
// configuring a socket Handler don't need to import internal/backoff
// directly; the socket and HTTP handlers share the same state machine.
type BackoffPolicy = backoff.Policy

func DefaultBackoffPolicy() backoff.Policy { return backoff.DefaultPolicy() }
