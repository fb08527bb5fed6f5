package domain

import "time"

// A courier route owning an ordered set of stops.
type Route struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt time.Time
}

// OptimizationRun is the append-only audit record written once per
// successful optimizer invocation.
type OptimizationRun struct {
	ID              string
	RouteID         string
	Algorithm       string
	KeyMode         KeySource
	DistanceMeters  int
	DurationSeconds int
	CreatedAt       time.Time
}
