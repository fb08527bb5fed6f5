package ports

import (
	"context"
	"manifest-route-service/internal/domain"
)

// A solver job. ID is a small positive integer local to one request.
type VRPJob struct {
	ID       int
	Location domain.Coordinates
}

// Single vehicle definition; the vehicle starts and ends at fixed points.
type VRPVehicle struct {
	ID    int
	Start domain.Coordinates
	End   domain.Coordinates
}

type VRPRequest struct {
	Jobs    []VRPJob
	Vehicle VRPVehicle
}

// Step types as returned by VRP solvers.
const (
	StepStart = "start"
	StepJob   = "job"
	StepEnd   = "end"
)

// One entry of the solver's ordered visit list. JobID is only meaningful
// for StepJob entries.
type VRPStep struct {
	Type  string
	JobID int
}

type VRPSolution struct {
	Steps           []VRPStep
	Unassigned      []int
	DistanceMeters  int
	DurationSeconds int
}

// External vehicle-routing solver consumed as a black box.
type RouteSolver interface {
	Solve(ctx context.Context, req VRPRequest, cred domain.Credential) (VRPSolution, error)
	// Version string recorded on the run audit log.
	Algorithm() string
}
