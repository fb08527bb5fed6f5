package repositories

import (
	"context"
	"fmt"
	"manifest-route-service/internal/domain"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStopRepository is an in-process StopRepository and ProviderKeyStore
// for tests and database-less local runs.
type MemoryStopRepository struct {
	mu     sync.RWMutex
	routes map[string]domain.Route
	stops  map[string][]domain.Stop
	runs   map[string][]domain.OptimizationRun
	keys   map[string]string
}

func NewMemoryStopRepository() *MemoryStopRepository {
	return &MemoryStopRepository{
		routes: map[string]domain.Route{},
		stops:  map[string][]domain.Stop{},
		runs:   map[string][]domain.OptimizationRun{},
		keys:   map[string]string{},
	}
}

func (m *MemoryStopRepository) CreateRoute(ctx context.Context, route domain.Route, parsed []domain.ParsedStop) (domain.Route, []domain.Stop, error) {
	if strings.TrimSpace(route.Name) == "" {
		return domain.Route{}, nil, &domain.InputError{Reason: "route name is required"}
	}
	if route.ID == "" {
		route.ID = uuid.NewString()
	}
	if route.CreatedAt.IsZero() {
		route.CreatedAt = time.Now().UTC()
	}

	stops, err := materialize(route, parsed, uuid.NewString)
	if err != nil {
		return domain.Route{}, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.routes[route.ID]; ok {
		return domain.Route{}, nil, fmt.Errorf("create route: route %s already exists", route.ID)
	}
	m.routes[route.ID] = route
	m.stops[route.ID] = stops

	return route, cloneStops(stops), nil
}

func (m *MemoryStopRepository) GetRoute(ctx context.Context, routeID string) (domain.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.routes[routeID]
	if !ok {
		return domain.Route{}, fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}
	return r, nil
}

func (m *MemoryStopRepository) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.routes[routeID]; !ok {
		return nil, fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}
	out := cloneStops(m.stops[routeID])
	sort.Slice(out, func(i, j int) bool { return out[i].OriginalPosition < out[j].OriginalPosition })
	return out, nil
}

func (m *MemoryStopRepository) UpdateCoordinates(ctx context.Context, stopID string, c domain.Coordinates) error {
	if !c.Valid() {
		return &domain.InputError{StopID: stopID, Reason: "coordinates out of range"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for routeID, stops := range m.stops {
		for i := range stops {
			if stops[i].ID == stopID {
				cc := c
				m.stops[routeID][i].Coordinates = &cc
				return nil
			}
		}
	}
	return fmt.Errorf("stop %s: %w", stopID, domain.ErrNotFound)
}

func (m *MemoryStopRepository) SaveOptimizedOrder(ctx context.Context, routeID string, orderedStopIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stops, ok := m.stops[routeID]
	if !ok || len(stops) == 0 {
		return fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}

	existing := make([]string, 0, len(stops))
	index := make(map[string]int, len(stops))
	for i, st := range stops {
		existing = append(existing, st.ID)
		index[st.ID] = i
	}
	if err := checkPermutation(routeID, existing, orderedStopIDs); err != nil {
		return err
	}

	for pos, id := range orderedStopIDs {
		p := pos + 1
		stops[index[id]].OptimizedPosition = &p
	}
	return nil
}

func (m *MemoryStopRepository) AppendRun(ctx context.Context, run domain.OptimizationRun) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.RouteID] = append(m.runs[run.RouteID], run)
	return nil
}

func (m *MemoryStopRepository) ListRuns(ctx context.Context, routeID string) ([]domain.OptimizationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.routes[routeID]; !ok {
		return nil, fmt.Errorf("route %s: %w", routeID, domain.ErrNotFound)
	}
	return append([]domain.OptimizationRun{}, m.runs[routeID]...), nil
}

func (m *MemoryStopRepository) GetProviderKey(ctx context.Context, userID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.keys[userID], nil
}

func (m *MemoryStopRepository) SetProviderKey(ctx context.Context, userID, apiKey string) error {
	if strings.TrimSpace(userID) == "" {
		return &domain.InputError{Reason: "user id is required"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if strings.TrimSpace(apiKey) == "" {
		delete(m.keys, userID)
		return nil
	}
	m.keys[userID] = strings.TrimSpace(apiKey)
	return nil
}

// cloneStops copies the pointer fields callers may mutate.
func cloneStops(in []domain.Stop) []domain.Stop {
	out := make([]domain.Stop, len(in))
	for i, st := range in {
		if st.OptimizedPosition != nil {
			v := *st.OptimizedPosition
			st.OptimizedPosition = &v
		}
		if st.Coordinates != nil {
			v := *st.Coordinates
			st.Coordinates = &v
		}
		out[i] = st
	}
	return out
}
