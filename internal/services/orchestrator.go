package services

import (
	"context"
	"fmt"
	"log/slog"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/platform/obs"
	"manifest-route-service/internal/ports"
	"time"

	"github.com/google/uuid"
)

const DefaultLeaseTTL = 2 * time.Minute

// RunResult is the outcome of one successful optimization run.
type RunResult struct {
	RunID          string
	OrderedStopIDs []string
	// Coordinates of every stop on the route, including those geocoded by this run.
	Coordinates     map[string]domain.Coordinates
	Geocoded        int
	Algorithm       string
	KeyMode         domain.KeySource
	DistanceMeters  int
	DurationSeconds int
}

// Orchestrator runs the gather, ensure-coordinates, optimize, persist and
// audit steps for one route under the route lease. Nothing is persisted
// unless geocoding and optimization both succeed.
type Orchestrator struct {
	stops     ports.StopRepository
	geocoder  ports.Geocoder
	optimizer *RouteOptimizer
	locker    ports.RouteLocker
	leaseTTL  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

type OrchestratorDeps struct {
	Stops     ports.StopRepository
	Geocoder  ports.Geocoder
	Optimizer *RouteOptimizer
	Locker    ports.RouteLocker
	LeaseTTL  time.Duration
	Logger    *slog.Logger
	// NewID generates run ids.
	NewID func() string
}

func NewOrchestrator(d OrchestratorDeps) *Orchestrator {
	o := &Orchestrator{
		stops:     d.Stops,
		geocoder:  d.Geocoder,
		optimizer: d.Optimizer,
		locker:    d.Locker,
		leaseTTL:  d.LeaseTTL,
		logger:    d.Logger,
		now:       time.Now,
		newID:     d.NewID,
	}
	if o.leaseTTL <= 0 {
		o.leaseTTL = DefaultLeaseTTL
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.newID == nil {
		o.newID = uuid.NewString
	}
	return o
}

func (o *Orchestrator) Run(ctx context.Context, routeID string, cred domain.Credential) (res RunResult, err error) {
	defer obs.Time(ctx, "orchestrator.Run")(&err)

	err = withRouteLease(ctx, o.locker, o.leaseTTL, o.logger, routeID, func(ctx context.Context) error {
		var runErr error
		res, runErr = o.run(ctx, routeID, cred)
		return runErr
	})
	if err != nil {
		return RunResult{}, err
	}
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, routeID string, cred domain.Credential) (RunResult, error) {
	// Gather.
	stops, err := o.stops.ListStops(ctx, routeID)
	if err != nil {
		return RunResult{}, fmt.Errorf("run optimization: load stops: %w", err)
	}
	if len(stops) < 2 {
		return RunResult{}, &domain.InputError{Reason: fmt.Sprintf("route %s has %d stop(s), at least 2 are required", routeID, len(stops))}
	}

	// Ensure coordinates. Strict: one unresolved address fails the run.
	resolved := map[string]domain.Coordinates{}
	for i := range stops {
		st := &stops[i]
		if st.HasCoordinates() {
			continue
		}

		address := domain.NormalizeAddress(st.Address)
		if address == "" {
			return RunResult{}, &domain.InputError{
				StopID: st.ID,
				Reason: fmt.Sprintf("stop %d has no address", st.OriginalPosition),
			}
		}

		c, err := o.geocoder.Geocode(ctx, address, cred)
		if err != nil {
			return RunResult{}, fmt.Errorf("run optimization: geocode stop %d: %w", st.OriginalPosition, err)
		}
		if c == nil {
			return RunResult{}, &domain.InputError{
				StopID:  st.ID,
				Address: address,
				Reason:  fmt.Sprintf("stop %d address could not be geocoded", st.OriginalPosition),
			}
		}

		cc := *c
		st.Coordinates = &cc
		resolved[st.ID] = cc
	}

	// Optimize.
	opt, err := o.optimizer.Optimize(ctx, stops, cred)
	if err != nil {
		return RunResult{}, fmt.Errorf("run optimization: %w", err)
	}
	if len(opt.Unassigned) > 0 {
		o.logger.WarnContext(ctx, "solver returned partial plan",
			"route_id", routeID, "unassigned", len(opt.Unassigned), "ordered", len(opt.OrderedStopIDs))
		return RunResult{}, &domain.PartialPlanError{Unassigned: opt.Unassigned}
	}

	// Persist. Coordinate writes and the order write are separate steps.
	if ctx.Err() != nil {
		return RunResult{}, fmt.Errorf("run optimization: before persist: %w", context.Cause(ctx))
	}
	for stopID, c := range resolved {
		if err := o.stops.UpdateCoordinates(ctx, stopID, c); err != nil {
			return RunResult{}, fmt.Errorf("run optimization: store coordinates: %w", err)
		}
	}
	if err := o.stops.SaveOptimizedOrder(ctx, routeID, opt.OrderedStopIDs); err != nil {
		return RunResult{}, fmt.Errorf("run optimization: store order: %w", err)
	}

	// Audit.
	run := domain.OptimizationRun{
		ID:              o.newID(),
		RouteID:         routeID,
		Algorithm:       opt.Algorithm,
		KeyMode:         cred.Source,
		DistanceMeters:  opt.DistanceMeters,
		DurationSeconds: opt.DurationSeconds,
		CreatedAt:       o.now().UTC(),
	}
	if err := o.stops.AppendRun(ctx, run); err != nil {
		return RunResult{}, fmt.Errorf("run optimization: append run: %w", err)
	}

	coords := make(map[string]domain.Coordinates, len(stops))
	for _, st := range stops {
		coords[st.ID] = *st.Coordinates
	}

	o.logger.InfoContext(ctx, "route optimized",
		"route_id", routeID, "stops", len(stops), "geocoded", len(resolved),
		"algorithm", opt.Algorithm, "key_mode", cred.Source)

	return RunResult{
		RunID:           run.ID,
		OrderedStopIDs:  opt.OrderedStopIDs,
		Coordinates:     coords,
		Geocoded:        len(resolved),
		Algorithm:       opt.Algorithm,
		KeyMode:         cred.Source,
		DistanceMeters:  opt.DistanceMeters,
		DurationSeconds: opt.DurationSeconds,
	}, nil
}
