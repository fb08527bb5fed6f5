package ors

import (
	"context"
	"manifest-route-service/internal/domain"
	"sync"
)

// MockGeocoder resolves addresses from a fixed table. Addresses missing from
// the table are "no match". It records every lookup for assertions.
type MockGeocoder struct {
	m map[string]domain.Coordinates

	mu    sync.Mutex
	calls []string
}

func NewMockGeocoder(table map[string]domain.Coordinates) *MockGeocoder {
	m := make(map[string]domain.Coordinates, len(table))
	for addr, c := range table {
		m[domain.NormalizeAddress(addr)] = c
	}
	return &MockGeocoder{m: m}
}

func (g *MockGeocoder) Geocode(ctx context.Context, address string, cred domain.Credential) (*domain.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	norm := domain.NormalizeAddress(address)

	g.mu.Lock()
	g.calls = append(g.calls, norm)
	g.mu.Unlock()

	c, ok := g.m[norm]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// Calls returns the normalized addresses looked up so far.
func (g *MockGeocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}
