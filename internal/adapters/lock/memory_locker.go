package lock

import (
	"context"
	"fmt"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
	"sync"
	"time"
)

// MemoryLocker is a single-process RouteLocker used when no Redis is configured.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
	seq    uint64
}

type lease struct {
	token   uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: map[string]lease{}, now: time.Now}
}

func (l *MemoryLocker) Acquire(ctx context.Context, routeID string, ttl time.Duration) (ports.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[routeID]; ok && now.Before(cur.expires) {
		return nil, domain.ErrRunInProgress
	}

	l.seq++
	l.leases[routeID] = lease{token: l.seq, expires: now.Add(ttl)}

	return &memoryLease{locker: l, routeID: routeID, token: l.seq}, nil
}

type memoryLease struct {
	locker  *MemoryLocker
	routeID string
	token   uint64
}

// Extend only succeeds while the lease is unexpired and still ours.
func (m *memoryLease) Extend(_ context.Context, ttl time.Duration) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cur, ok := l.leases[m.routeID]
	if !ok || cur.token != m.token || !now.Before(cur.expires) {
		return fmt.Errorf("extend route lease %s: %w", m.routeID, domain.ErrLeaseLost)
	}
	cur.expires = now.Add(ttl)
	l.leases[m.routeID] = cur
	return nil
}

func (m *memoryLease) Release(context.Context) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()
	if cur, ok := l.leases[m.routeID]; ok && cur.token == m.token {
		delete(l.leases, m.routeID)
	}
	return nil
}
