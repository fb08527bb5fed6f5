package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"manifest-route-service/internal/adapters/lock"
	"manifest-route-service/internal/adapters/repositories"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchestratorFixture struct {
	repo     *repositories.MemoryStopRepository
	geocoder *geocoderMock
	solver   *solverMock
	locker   *lock.MemoryLocker
	o        *Orchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		repo: repositories.NewMemoryStopRepository(),
		geocoder: &geocoderMock{fn: func(address string) (*domain.Coordinates, error) {
			return coords(9.1, 45.1), nil
		}},
		solver: &solverMock{algorithm: "ors-vroom-v1", fn: func(req ports.VRPRequest) (ports.VRPSolution, error) {
			ids := make([]int, 0, len(req.Jobs))
			for i := len(req.Jobs); i >= 1; i-- {
				ids = append(ids, i)
			}
			sol := jobOrder(ids...)
			sol.DistanceMeters, sol.DurationSeconds = 1000, 120
			return sol, nil
		}},
		locker: lock.NewMemoryLocker(),
	}
	f.o = NewOrchestrator(OrchestratorDeps{
		Stops:     f.repo,
		Geocoder:  f.geocoder,
		Optimizer: NewRouteOptimizer(f.solver, nil),
		Locker:    f.locker,
		LeaseTTL:  time.Minute,
	})
	return f
}

func (f *orchestratorFixture) assertNothingPersisted(t *testing.T, routeID string) {
	t.Helper()
	stops, err := f.repo.ListStops(context.Background(), routeID)
	require.NoError(t, err)
	for _, st := range stops {
		assert.Nil(t, st.OptimizedPosition, "stop %d", st.OriginalPosition)
		assert.Nil(t, st.Coordinates, "stop %d", st.OriginalPosition)
	}
	runs, err := f.repo.ListRuns(context.Background(), routeID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRun_HappyPath(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	route, stops := newRouteWithStops(t, f.repo, "Via Roma 1", "Via Verdi 2", "Via Po 3", "Via Dante 4")
	require.NoError(t, f.repo.UpdateCoordinates(ctx, stops[0].ID, domain.Coordinates{Lon: 9, Lat: 45}))

	cred := domain.Credential{Source: domain.KeySourceUser, Key: "mine"}
	res, err := f.o.Run(ctx, route.ID, cred)
	require.NoError(t, err)

	assert.Equal(t, []string{stops[3].ID, stops[2].ID, stops[1].ID, stops[0].ID}, res.OrderedStopIDs)
	assert.Equal(t, 3, res.Geocoded)
	assert.Len(t, f.geocoder.Calls(), 3, "already geocoded stops are not looked up again")
	assert.Len(t, res.Coordinates, 4)
	assert.Equal(t, domain.KeySourceUser, res.KeyMode)
	assert.Equal(t, "ors-vroom-v1", res.Algorithm)
	assert.Equal(t, cred, f.solver.lastCred)

	listed, err := f.repo.ListStops(ctx, route.ID)
	require.NoError(t, err)
	positions := make([]int, 0, len(listed))
	for _, st := range listed {
		require.NotNil(t, st.Coordinates)
		require.NotNil(t, st.OptimizedPosition)
		positions = append(positions, *st.OptimizedPosition)
	}
	assert.Equal(t, []int{4, 3, 2, 1}, positions)
	sort.Ints(positions)
	assert.Equal(t, []int{1, 2, 3, 4}, positions)

	runs, err := f.repo.ListRuns(ctx, route.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, "ors-vroom-v1", runs[0].Algorithm)
	assert.Equal(t, domain.KeySourceUser, runs[0].KeyMode)
	assert.Equal(t, 1000, runs[0].DistanceMeters)

	// The lease was released.
	_, err = f.o.Run(ctx, route.ID, cred)
	require.NoError(t, err)
}

func TestRun_EmptyAddressAbortsBeforePersisting(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	route, stops := newRouteWithStops(t, f.repo, "Via Roma 1", "placeholder", "Via Po 3")

	// Simulate a stop whose address was blanked after import.
	f.o.stops = &blankAddressRepo{MemoryStopRepository: f.repo, stopID: stops[1].ID}

	_, err := f.o.Run(ctx, route.ID, sharedCred)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInput)

	var ie *domain.InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, stops[1].ID, ie.StopID)
	assert.Contains(t, ie.Error(), "stop 2")

	f.assertNothingPersisted(t, route.ID)
}

// blankAddressRepo returns one stop with an empty address, which the stores
// themselves refuse to create.
type blankAddressRepo struct {
	*repositories.MemoryStopRepository
	stopID string
}

func (r *blankAddressRepo) ListStops(ctx context.Context, routeID string) ([]domain.Stop, error) {
	stops, err := r.MemoryStopRepository.ListStops(ctx, routeID)
	for i := range stops {
		if stops[i].ID == r.stopID {
			stops[i].Address = ""
		}
	}
	return stops, err
}

func TestRun_UngeocodableAddress(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	route, _ := newRouteWithStops(t, f.repo, "Via Roma 1", "Atlantis 0", "Via Po 3")
	f.geocoder.fn = func(address string) (*domain.Coordinates, error) {
		if address == "Atlantis 0" {
			return nil, nil
		}
		return coords(9, 45), nil
	}

	_, err := f.o.Run(ctx, route.ID, sharedCred)
	var ie *domain.InputError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "Atlantis 0", ie.Address)

	f.assertNothingPersisted(t, route.ID)
}

func TestRun_GeocodeTransportError(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	route, _ := newRouteWithStops(t, f.repo, "Via Roma 1", "Via Po 3")
	f.geocoder.fn = func(string) (*domain.Coordinates, error) {
		return nil, &domain.UpstreamError{Op: "geocode", StatusCode: 502}
	}

	_, err := f.o.Run(ctx, route.ID, sharedCred)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	f.assertNothingPersisted(t, route.ID)
}

func TestRun_SolverFailures(t *testing.T) {
	cases := map[string]struct {
		sol  ports.VRPSolution
		err  error
		kind error
	}{
		"upstream":     {err: &domain.UpstreamError{Op: "solve", StatusCode: 500}, kind: domain.ErrUpstream},
		"protocol":     {err: &domain.ProtocolError{Op: "solve", Reason: "missing routes"}, kind: domain.ErrProtocol},
		"partial plan": {sol: jobOrder(2, 1), kind: domain.ErrUpstream},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			f := newOrchestratorFixture(t)
			route, stops := newRouteWithStops(t, f.repo, "Via Roma 1", "Via Verdi 2", "Via Po 3")
			f.solver.fn = func(ports.VRPRequest) (ports.VRPSolution, error) { return tc.sol, tc.err }

			_, err := f.o.Run(ctx, route.ID, sharedCred)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)

			if name == "partial plan" {
				var pe *domain.PartialPlanError
				require.True(t, errors.As(err, &pe))
				assert.Equal(t, []string{stops[2].ID}, pe.Unassigned)
			}

			f.assertNothingPersisted(t, route.ID)
		})
	}
}

func TestRun_RejectsConcurrentRun(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	route, _ := newRouteWithStops(t, f.repo, "Via Roma 1", "Via Po 3")

	held, err := f.locker.Acquire(ctx, route.ID, time.Minute)
	require.NoError(t, err)

	_, err = f.o.Run(ctx, route.ID, sharedCred)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
	assert.Empty(t, f.geocoder.Calls())

	require.NoError(t, held.Release(ctx))
	_, err = f.o.Run(ctx, route.ID, sharedCred)
	assert.NoError(t, err)
}

func TestRun_TooFewStopsAndMissingRoute(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	route, _ := newRouteWithStops(t, f.repo, "Via Roma 1")

	_, err := f.o.Run(ctx, route.ID, sharedCred)
	assert.ErrorIs(t, err, domain.ErrInput)

	_, err = f.o.Run(ctx, "missing", sharedCred)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRun_LeaseRenewedDuringSlowGeocoding(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	f.o.leaseTTL = 100 * time.Millisecond
	f.geocoder.fn = func(string) (*domain.Coordinates, error) {
		time.Sleep(60 * time.Millisecond)
		return coords(9.1, 45.1), nil
	}
	route, _ := newRouteWithStops(t, f.repo, "Via Roma 1", "Via Po 3", "Via Dante 5")

	done := make(chan error, 1)
	go func() {
		_, err := f.o.Run(ctx, route.ID, sharedCred)
		done <- err
	}()

	// Past the initial TTL, while the first run is still geocoding.
	time.Sleep(130 * time.Millisecond)
	_, err := f.o.Run(ctx, route.ID, sharedCred)
	assert.ErrorIs(t, err, domain.ErrRunInProgress)

	require.NoError(t, <-done)
	runs, err := f.repo.ListRuns(ctx, route.ID)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

type lostLease struct{}

func (lostLease) Extend(context.Context, time.Duration) error { return domain.ErrLeaseLost }
func (lostLease) Release(context.Context) error { return nil }

type lostLeaseLocker struct{}

func (lostLeaseLocker) Acquire(context.Context, string, time.Duration) (ports.Lease, error) {
	return lostLease{}, nil
}

func TestRun_LostLeaseAbortsBeforePersist(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t)
	f.geocoder.fn = func(string) (*domain.Coordinates, error) {
		time.Sleep(40 * time.Millisecond)
		return coords(9.1, 45.1), nil
	}
	o := NewOrchestrator(OrchestratorDeps{
		Stops:     f.repo,
		Geocoder:  f.geocoder,
		Optimizer: NewRouteOptimizer(f.solver, nil),
		Locker:    lostLeaseLocker{},
		LeaseTTL:  30 * time.Millisecond,
	})
	route, _ := newRouteWithStops(t, f.repo, "Via Roma 1", "Via Po 3")

	_, err := o.Run(ctx, route.ID, sharedCred)
	require.ErrorIs(t, err, domain.ErrLeaseLost)

	f.assertNothingPersisted(t, route.ID)
	stops, err := f.repo.ListStops(ctx, route.ID)
	require.NoError(t, err)
	for _, st := range stops {
		assert.Nil(t, st.Coordinates)
	}
}
