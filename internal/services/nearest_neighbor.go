package services

import (
	"context"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
	"math"
)

const (
	NearestNeighborAlgorithm = "nearest-neighbor-v1"

	earthRadiusMeters = 6371000.0
	// Assumed urban driving speed for the duration estimate.
	nearestNeighborSpeedMPS = 30.0 / 3.6
)

// NearestNeighborSolver is a local RouteSolver using a greedy
// nearest-neighbor walk over great-circle distances.
//
// It does not attempt global optimization. It needs no credential and no
// network, which makes it the offline and test fallback for the ORS solver.
type NearestNeighborSolver struct{}

func (NearestNeighborSolver) Algorithm() string { return NearestNeighborAlgorithm }

func (NearestNeighborSolver) Solve(ctx context.Context, req ports.VRPRequest, _ domain.Credential) (ports.VRPSolution, error) {
	if err := ctx.Err(); err != nil {
		return ports.VRPSolution{}, err
	}

	sol := ports.VRPSolution{Steps: []ports.VRPStep{{Type: ports.StepStart}}}

	remaining := make(map[int]domain.Coordinates, len(req.Jobs))
	for _, j := range req.Jobs {
		remaining[j.ID] = j.Location
	}

	current := req.Vehicle.Start
	total := 0.0

	for len(remaining) > 0 {
		bestID := 0
		best := math.MaxFloat64

		// Select the closest job (greedy step).
		for id, loc := range remaining {
			d := haversineMeters(current, loc)
			// Tie-breaker keeps the walk deterministic over map iteration order.
			if d < best || (d == best && id < bestID) {
				best = d
				bestID = id
			}
		}

		total += best
		current = remaining[bestID]
		delete(remaining, bestID)
		sol.Steps = append(sol.Steps, ports.VRPStep{Type: ports.StepJob, JobID: bestID})
	}

	total += haversineMeters(current, req.Vehicle.End)
	sol.Steps = append(sol.Steps, ports.VRPStep{Type: ports.StepEnd})

	sol.DistanceMeters = int(math.Round(total))
	sol.DurationSeconds = int(math.Round(total / nearestNeighborSpeedMPS))

	return sol, nil
}

func haversineMeters(a, b domain.Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}
