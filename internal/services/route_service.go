package services

import (
	"context"
	"fmt"
	"log/slog"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/manifest"
	"manifest-route-service/internal/platform/obs"
	"manifest-route-service/internal/ports"
	"strings"
	"time"
)

// RouteService is the inbound surface used by the HTTP API and the CLI.
type RouteService struct {
	parser       *manifest.Parser
	stops        ports.StopRepository
	keys         ports.ProviderKeyStore
	credentials  *CredentialResolver
	batch        *BatchGeocoder
	orchestrator *Orchestrator
	locker       ports.RouteLocker
	leaseTTL     time.Duration
	logger       *slog.Logger
}

type RouteServiceDeps struct {
	Stops       ports.StopRepository
	Keys        ports.ProviderKeyStore
	Credentials *CredentialResolver
	// Geocoder is the decorated chain: cache over the paced provider client.
	Geocoder ports.Geocoder
	Solver   ports.RouteSolver
	Locker   ports.RouteLocker
	LeaseTTL time.Duration
	Logger   *slog.Logger
}

func NewRouteService(d RouteServiceDeps) *RouteService {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := d.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	return &RouteService{
		parser:      manifest.NewParser(logger),
		stops:       d.Stops,
		keys:        d.Keys,
		credentials: d.Credentials,
		batch:       NewBatchGeocoder(d.Geocoder, d.Stops, logger),
		orchestrator: NewOrchestrator(OrchestratorDeps{
			Stops:     d.Stops,
			Geocoder:  d.Geocoder,
			Optimizer: NewRouteOptimizer(d.Solver, logger),
			Locker:    d.Locker,
			LeaseTTL:  ttl,
			Logger:    logger,
		}),
		locker:   d.Locker,
		leaseTTL: ttl,
		logger:   logger,
	}
}

// ParseManifest is pure: no I/O, no state.
func (s *RouteService) ParseManifest(text string) manifest.Result {
	return s.parser.Parse(text)
}

// CreateRouteWithStops persists a route and its stops with original
// positions 1..N in the given order.
func (s *RouteService) CreateRouteWithStops(
	ctx context.Context,
	meta domain.Route,
	stops []domain.ParsedStop,
) (_ domain.Route, _ []domain.Stop, err error) {
	defer obs.Time(ctx, "routes.CreateRouteWithStops")(&err)

	meta.Name = strings.TrimSpace(meta.Name)
	if meta.Name == "" {
		return domain.Route{}, nil, &domain.InputError{Reason: "route name is required"}
	}
	if len(stops) == 0 {
		return domain.Route{}, nil, &domain.InputError{Reason: "manifest produced no stops"}
	}

	route, created, err := s.stops.CreateRoute(ctx, meta, stops)
	if err != nil {
		return domain.Route{}, nil, fmt.Errorf("create route: %w", err)
	}

	s.logger.InfoContext(ctx, "route created", "route_id", route.ID, "stops", len(created))
	return route, created, nil
}

// authorize loads the route and rejects callers other than its owner.
// Routes created without an identity are open to every caller.
func (s *RouteService) authorize(ctx context.Context, routeID, userID string) (domain.Route, error) {
	route, err := s.stops.GetRoute(ctx, routeID)
	if err != nil {
		return domain.Route{}, err
	}
	if route.OwnerID != "" && route.OwnerID != userID {
		return domain.Route{}, fmt.Errorf("route %s: %w", routeID, domain.ErrForbidden)
	}
	return route, nil
}

func (s *RouteService) GetRoute(ctx context.Context, routeID, userID string) (domain.Route, []domain.Stop, error) {
	route, err := s.authorize(ctx, routeID, userID)
	if err != nil {
		return domain.Route{}, nil, err
	}
	stops, err := s.stops.ListStops(ctx, routeID)
	if err != nil {
		return domain.Route{}, nil, err
	}
	return route, stops, nil
}

func (s *RouteService) ListRuns(ctx context.Context, routeID, userID string) ([]domain.OptimizationRun, error) {
	if _, err := s.authorize(ctx, routeID, userID); err != nil {
		return nil, err
	}
	return s.stops.ListRuns(ctx, routeID)
}

// GeocodeRemaining runs one bounded batch over the route's stops that still
// lack coordinates, under the route lease.
func (s *RouteService) GeocodeRemaining(ctx context.Context, routeID, userID string) (_ BatchResult, _ domain.KeySource, err error) {
	defer obs.Time(ctx, "routes.GeocodeRemaining")(&err)

	if _, err := s.authorize(ctx, routeID, userID); err != nil {
		return BatchResult{}, "", err
	}
	cred, err := s.credentials.Resolve(ctx, userID)
	if err != nil {
		return BatchResult{}, "", err
	}

	var res BatchResult
	err = withRouteLease(ctx, s.locker, s.leaseTTL, s.logger, routeID, func(ctx context.Context) error {
		stops, err := s.stops.ListStops(ctx, routeID)
		if err != nil {
			return err
		}
		res = s.batch.GeocodeBatch(ctx, stops, cred)
		// Stops stored before a cancellation stay stored.
		return context.Cause(ctx)
	})
	if err != nil {
		return BatchResult{}, "", err
	}

	s.logger.InfoContext(ctx, "geocode batch finished",
		"route_id", routeID, "attempted", res.Attempted, "updated", res.Updated,
		"failed", res.FailureCount, "key_mode", cred.Source)
	return res, cred.Source, nil
}

// RunOptimization resolves the caller's credential and runs the orchestrator.
func (s *RouteService) RunOptimization(ctx context.Context, routeID, userID string) (RunResult, error) {
	if _, err := s.authorize(ctx, routeID, userID); err != nil {
		return RunResult{}, err
	}
	cred, err := s.credentials.Resolve(ctx, userID)
	if err != nil {
		return RunResult{}, err
	}
	return s.orchestrator.Run(ctx, routeID, cred)
}

// SetProviderKey stores (or, with an empty key, clears) a personal key.
func (s *RouteService) SetProviderKey(ctx context.Context, userID, apiKey string) error {
	if strings.TrimSpace(userID) == "" {
		return &domain.InputError{Reason: "an authenticated user is required"}
	}
	return s.keys.SetProviderKey(ctx, userID, apiKey)
}
