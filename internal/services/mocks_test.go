package services

import (
	"context"
	"sync"

	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
)

type geocoderMock struct {
	mu    sync.Mutex
	calls []string
	fn    func(address string) (*domain.Coordinates, error)
}

func (m *geocoderMock) Geocode(ctx context.Context, address string, cred domain.Credential) (*domain.Coordinates, error) {
	m.mu.Lock()
	m.calls = append(m.calls, address)
	m.mu.Unlock()
	return m.fn(address)
}

func (m *geocoderMock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type solverMock struct {
	algorithm string
	lastReq   ports.VRPRequest
	lastCred  domain.Credential
	fn        func(req ports.VRPRequest) (ports.VRPSolution, error)
}

func (m *solverMock) Solve(ctx context.Context, req ports.VRPRequest, cred domain.Credential) (ports.VRPSolution, error) {
	m.lastReq = req
	m.lastCred = cred
	return m.fn(req)
}

func (m *solverMock) Algorithm() string {
	if m.algorithm == "" {
		return "mock-v1"
	}
	return m.algorithm
}

// jobOrder builds a solution visiting the given job ids between start and end.
func jobOrder(ids ...int) ports.VRPSolution {
	sol := ports.VRPSolution{Steps: []ports.VRPStep{{Type: ports.StepStart}}}
	for _, id := range ids {
		sol.Steps = append(sol.Steps, ports.VRPStep{Type: ports.StepJob, JobID: id})
	}
	sol.Steps = append(sol.Steps, ports.VRPStep{Type: ports.StepEnd})
	return sol
}

type keyStoreMock struct {
	keys map[string]string
	err  error
}

func (m *keyStoreMock) GetProviderKey(ctx context.Context, userID string) (string, error) {
	return m.keys[userID], m.err
}

func (m *keyStoreMock) SetProviderKey(ctx context.Context, userID, apiKey string) error {
	m.keys[userID] = apiKey
	return m.err
}

func coords(lon, lat float64) *domain.Coordinates {
	return &domain.Coordinates{Lon: lon, Lat: lat}
}

var sharedCred = domain.Credential{Source: domain.KeySourceShared, Key: "shared"}
