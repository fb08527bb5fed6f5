package ports

import (
	"context"
	"manifest-route-service/internal/domain"
)

// Contract for resolving a free-text address to coordinates.
type Geocoder interface {
	// Return (nil, nil) when the provider has no usable match. Errors are
	// reserved for transport, non-2xx and malformed responses.
	Geocode(ctx context.Context, address string, cred domain.Credential) (*domain.Coordinates, error)
}

// Address -> coordinate cache. Keys are normalized by the caller.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.Coordinates, error)
	PutMany(ctx context.Context, results map[string]domain.Coordinates) error
}
