package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
	"sync"
	"time"
)

// withRouteLease runs fn while holding the route's lease. A held lease
// rejects immediately with domain.ErrRunInProgress.
//
// The lease is extended every ttl/3 while fn runs. If an extension fails,
// fn's context is cancelled with the extension error as its cause.
func withRouteLease(
	ctx context.Context,
	locker ports.RouteLocker,
	ttl time.Duration,
	logger *slog.Logger,
	routeID string,
	fn func(ctx context.Context) error,
) error {
	lease, err := locker.Acquire(ctx, routeID, ttl)
	if err != nil {
		return fmt.Errorf("route %s: %w", routeID, err)
	}
	defer func() {
		// Release even when the request context is already cancelled.
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.WarnContext(ctx, "route lease release failed", "route_id", routeID, "err", err)
		}
	}()

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		renewLease(runCtx, lease, ttl, stop, func(err error) {
			logger.ErrorContext(ctx, "route lease lost, aborting", "route_id", routeID, "err", err)
			cancel(err)
		})
	}()

	err = fn(runCtx)
	close(stop)
	wg.Wait()

	if err != nil && ctx.Err() == nil {
		if cause := context.Cause(runCtx); cause != nil {
			return fmt.Errorf("route %s: %w", routeID, cause)
		}
	}
	return err
}

func renewLease(ctx context.Context, lease ports.Lease, ttl time.Duration, stop <-chan struct{}, lost func(error)) {
	every := ttl / 3
	if every <= 0 {
		every = time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Extend(ctx, ttl); err != nil {
				if !errors.Is(err, domain.ErrLeaseLost) {
					// An unconfirmed extension counts as lost.
					err = fmt.Errorf("%w: %w", domain.ErrLeaseLost, err)
				}
				lost(err)
				return
			}
		}
	}
}
