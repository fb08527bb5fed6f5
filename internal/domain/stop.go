package domain

import (
	"fmt"
	"strings"
	"time"
)

// StopKind classifies what the courier does at a stop.
type StopKind string

const (
	StopKindPickup   StopKind = "pickup"
	StopKindDelivery StopKind = "delivery"
	StopKindReturn   StopKind = "return"
)

// ParseStopKind maps free text to a StopKind, defaulting to delivery.
func ParseStopKind(s string) StopKind {
	switch StopKind(strings.ToLower(strings.TrimSpace(s))) {
	case StopKindPickup:
		return StopKindPickup
	case StopKindReturn:
		return StopKindReturn
	default:
		return StopKindDelivery
	}
}

// Represents a single unit of courier work on a route.
//
// OriginalPosition is the 1-based import rank and never changes.
// OptimizedPosition is nil until a successful optimization run and is
// overwritten by each later run. Coordinates is nil until geocoded.
type Stop struct {
	ID                 string
	RouteID            string
	OriginalPosition   int
	OptimizedPosition  *int
	Address            string
	City               *string
	PackageCount       *int
	DeliveryWindow     *string
	Kind               StopKind
	Coordinates        *Coordinates
	Completed          bool
	SuspectedDuplicate *int
	CreatedAt          time.Time
}

// HasCoordinates reports whether the stop can be submitted to the route solver.
func (s Stop) HasCoordinates() bool { return s.Coordinates != nil }

// Output of manifest parsing. It carries no identity and is consumed
// immediately to materialize Stops.
type ParsedStop struct {
	StopIndex          int
	Address            string
	City               *string
	PackageCount       *int
	DeliveryWindow     *string
	Kind               StopKind
	SuspectedDuplicate *int
}

// NormalizeAddress collapses whitespace runs and trims the result.
func NormalizeAddress(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Validate checks a parsed stop before it is persisted.
func (p ParsedStop) Validate() error {
	if NormalizeAddress(p.Address) == "" {
		return &InputError{Reason: fmt.Sprintf("stop %d: address is required", p.StopIndex)}
	}
	if p.PackageCount != nil && *p.PackageCount < 0 {
		return &InputError{Address: p.Address, Reason: fmt.Sprintf("stop %d: package count must not be negative", p.StopIndex)}
	}
	return nil
}
