package ors

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer gates a single HTTP attempt against the provider.
type pacer interface {
	Do(ctx context.Context, attempt func() error) error
}

// Throttle keeps at least interval of idle time between the end of one
// provider attempt and the start of the next, across all goroutines sharing
// it. Attempts run one at a time. The first attempt passes immediately.
type Throttle struct {
	interval time.Duration
	slot     chan struct{}
	// Guarded by slot.
	last time.Time
	now  func() time.Time
}

func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{interval: interval, slot: make(chan struct{}, 1), now: time.Now}
}

func (t *Throttle) Do(ctx context.Context, attempt func() error) error {
	if t.interval <= 0 {
		return attempt()
	}

	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-t.slot }()

	if !t.last.IsZero() {
		if wait := t.interval - t.now().Sub(t.last); wait > 0 {
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}

	defer func() { t.last = t.now() }()
	return attempt()
}

// limiterPacer spaces attempt starts with a token bucket of burst 1.
type limiterPacer struct {
	limiter *rate.Limiter
}

func newLimiterPacer(interval time.Duration) limiterPacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return limiterPacer{limiter: rate.NewLimiter(limit, 1)}
}

func (p limiterPacer) Do(ctx context.Context, attempt func() error) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return attempt()
}
