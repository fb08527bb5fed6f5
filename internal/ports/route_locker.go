package ports

import (
	"context"
	"time"
)

// Lease is a held per-route lease.
type Lease interface {
	// Extend pushes the expiry to ttl from now. It fails with
	// domain.ErrLeaseLost once the lease expired or changed hands.
	Extend(ctx context.Context, ttl time.Duration) error
	// Release drops the lease. Safe to call once the lease has expired.
	Release(ctx context.Context) error
}

// Per-route mutual exclusion with expiry. Acquire never queues: a held lease
// yields domain.ErrRunInProgress immediately.
type RouteLocker interface {
	Acquire(ctx context.Context, routeID string, ttl time.Duration) (Lease, error)
}
