package services

import (
	"context"
	"fmt"
	"log/slog"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
)

// OptimizeResult maps a solver answer back to stop identities.
// Unassigned lists stops the solver did not place; a complete plan has none.
type OptimizeResult struct {
	OrderedStopIDs  []string
	Unassigned      []string
	Algorithm       string
	DistanceMeters  int
	DurationSeconds int
}

// RouteOptimizer builds a single-vehicle VRP request from coordinate-bearing
// stops and translates the solver's job order back into stop ids.
type RouteOptimizer struct {
	solver ports.RouteSolver
	logger *slog.Logger
}

func NewRouteOptimizer(solver ports.RouteSolver, logger *slog.Logger) *RouteOptimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteOptimizer{solver: solver, logger: logger}
}

// jobTable is the per-call bijection between synthetic job ids (1..N) and
// stop ids. Job id k refers to stops[k-1].
type jobTable struct {
	stopIDs []string
}

func newJobTable(stops []domain.Stop) jobTable {
	ids := make([]string, len(stops))
	for i, st := range stops {
		ids[i] = st.ID
	}
	return jobTable{stopIDs: ids}
}

func (t jobTable) stopID(jobID int) (string, bool) {
	if jobID < 1 || jobID > len(t.stopIDs) {
		return "", false
	}
	return t.stopIDs[jobID-1], true
}

func (o *RouteOptimizer) Optimize(ctx context.Context, stops []domain.Stop, cred domain.Credential) (OptimizeResult, error) {
	if len(stops) < 2 {
		return OptimizeResult{}, &domain.InputError{Reason: fmt.Sprintf("at least 2 stops are required, got %d", len(stops))}
	}
	for _, st := range stops {
		if !st.HasCoordinates() {
			return OptimizeResult{}, &domain.InputError{StopID: st.ID, Address: st.Address, Reason: "stop has no coordinates"}
		}
	}

	table := newJobTable(stops)

	req := ports.VRPRequest{
		Jobs: make([]ports.VRPJob, 0, len(stops)),
		// No depot: the vehicle starts and ends at the first stop.
		Vehicle: ports.VRPVehicle{
			ID:    1,
			Start: *stops[0].Coordinates,
			End:   *stops[0].Coordinates,
		},
	}
	for i, st := range stops {
		req.Jobs = append(req.Jobs, ports.VRPJob{ID: i + 1, Location: *st.Coordinates})
	}

	sol, err := o.solver.Solve(ctx, req, cred)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("optimize route: %w", err)
	}

	res := OptimizeResult{
		OrderedStopIDs:  make([]string, 0, len(stops)),
		Algorithm:       o.solver.Algorithm(),
		DistanceMeters:  sol.DistanceMeters,
		DurationSeconds: sol.DurationSeconds,
	}

	seen := make(map[int]bool, len(stops))
	for _, step := range sol.Steps {
		if step.Type != ports.StepJob {
			continue
		}
		id, ok := table.stopID(step.JobID)
		if !ok {
			return OptimizeResult{}, o.protocolErr(ctx, fmt.Sprintf("solver referenced unknown job %d", step.JobID), sol)
		}
		if seen[step.JobID] {
			return OptimizeResult{}, o.protocolErr(ctx, fmt.Sprintf("solver visited job %d twice", step.JobID), sol)
		}
		seen[step.JobID] = true
		res.OrderedStopIDs = append(res.OrderedStopIDs, id)
	}

	for _, jobID := range sol.Unassigned {
		if _, ok := table.stopID(jobID); !ok {
			return OptimizeResult{}, o.protocolErr(ctx, fmt.Sprintf("solver left unknown job %d unassigned", jobID), sol)
		}
	}

	// Anything not visited is unassigned, whether or not the solver said so.
	for jobID := 1; jobID <= len(stops); jobID++ {
		if !seen[jobID] {
			id, _ := table.stopID(jobID)
			res.Unassigned = append(res.Unassigned, id)
		}
	}

	return res, nil
}

func (o *RouteOptimizer) protocolErr(ctx context.Context, reason string, sol ports.VRPSolution) error {
	payload := fmt.Sprintf("%+v", sol)
	o.logger.ErrorContext(ctx, "unusable solver response", "reason", reason, "payload", payload)
	return &domain.ProtocolError{Op: "optimize route", Reason: reason, Payload: payload}
}
