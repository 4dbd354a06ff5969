package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a held lock.
type UnlockFunc func(ctx context.Context) error

// Locker serializes steps across replicas so at most one scheduler step is
// in flight per game. The lock is held only around the read/plan/write
// window, never across provider I/O.
type Locker interface {
	// Lock blocks until the per-game lock is acquired, the context is
	// canceled, or the TTL expires. The returned UnlockFunc MUST be called.
	Lock(ctx context.Context, gameID string, ttl time.Duration) (UnlockFunc, error)
}
