package ports

import (
	"context"
	"manifest-route-service/internal/domain"
)

// Port: durable collection of stops per route, keyed by stable identity.
type StopRepository interface {
	// Persist a route and materialize its parsed stops with dense
	// original positions 1..N.
	CreateRoute(ctx context.Context, route domain.Route, stops []domain.ParsedStop) (domain.Route, []domain.Stop, error)
	// Return domain.ErrNotFound when the route does not exist.
	GetRoute(ctx context.Context, routeID string) (domain.Route, error)
	// Return all stops of a route ordered by original position.
	ListStops(ctx context.Context, routeID string) ([]domain.Stop, error)
	UpdateCoordinates(ctx context.Context, stopID string, c domain.Coordinates) error
	// Write optimized positions (index+1) for a full permutation of the route's stops.
	SaveOptimizedOrder(ctx context.Context, routeID string, orderedStopIDs []string) error
	AppendRun(ctx context.Context, run domain.OptimizationRun) error
	ListRuns(ctx context.Context, routeID string) ([]domain.OptimizationRun, error)
}

// Port: per-user provider keys. A missing key is "", not an error.
type ProviderKeyStore interface {
	GetProviderKey(ctx context.Context, userID string) (string, error)
	SetProviderKey(ctx context.Context, userID, apiKey string) error
}
