package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lock acquired from a DistributedLocker. It must be
// safe to call exactly once; implementations may make repeat calls no-ops.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes turns on the same thread across processes.
// The engine already serializes per-thread within a process; a locker
// extends that guarantee when several instances share one snapshot store.
//
// Acquire blocks until the lock is held, the TTL elapses on a stale holder,
// or the context is done. The TTL bounds how long a crashed holder can wedge
// a thread.
type DistributedLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
