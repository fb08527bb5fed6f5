package ors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/platform/obs"
	"manifest-route-service/internal/ports"
	"math"
	"net/http"
)

type optimizationRequest struct {
	Jobs     []optimizationJob     `json:"jobs"`
	Vehicles []optimizationVehicle `json:"vehicles"`
}

type optimizationJob struct {
	ID       int       `json:"id"`
	Location []float64 `json:"location"`
}

type optimizationVehicle struct {
	ID      int       `json:"id"`
	Profile string    `json:"profile"`
	Start   []float64 `json:"start"`
	End     []float64 `json:"end"`
}

type optimizationStep struct {
	Type string `json:"type"`
	Job  *int   `json:"job"`
	ID   *int   `json:"id"`
}

type optimizationRoute struct {
	Vehicle  int                 `json:"vehicle"`
	Distance float64             `json:"distance"`
	Duration float64             `json:"duration"`
	Steps    *[]optimizationStep `json:"steps"`
}

type optimizationResponse struct {
	Code    *int   `json:"code"`
	Error   string `json:"error"`
	Summary *struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"summary"`
	Unassigned []struct {
		ID int `json:"id"`
	} `json:"unassigned"`
	Routes *[]optimizationRoute `json:"routes"`
}

// Solve submits a single-vehicle problem to the ORS optimization endpoint
// and returns the ordered visit steps as reported by the solver.
func (c *Client) Solve(
	ctx context.Context,
	req ports.VRPRequest,
	cred domain.Credential,
) (_ ports.VRPSolution, err error) {
	defer obs.Time(ctx, "ors.Solve")(&err)

	bodyObj := optimizationRequest{
		Jobs: make([]optimizationJob, 0, len(req.Jobs)),
		Vehicles: []optimizationVehicle{{
			ID:      req.Vehicle.ID,
			Profile: c.profile,
			Start:   req.Vehicle.Start.CoordsToList(),
			End:     req.Vehicle.End.CoordsToList(),
		}},
	}
	for _, j := range req.Jobs {
		bodyObj.Jobs = append(bodyObj.Jobs, optimizationJob{ID: j.ID, Location: j.Location.CoordsToList()})
	}

	payload, err := json.Marshal(bodyObj)
	if err != nil {
		return ports.VRPSolution{}, fmt.Errorf("marshal optimization request: %w", err)
	}

	endpoint := c.baseURL + "/optimization"
	resp, err := c.doWithRetry(ctx, "ors optimization", c.solvePace, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload), cred)
	})
	if err != nil {
		return ports.VRPSolution{}, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return ports.VRPSolution{}, &domain.UpstreamError{Op: "ors optimization", Err: err}
	}

	sol, err := decodeSolution(body)
	if err != nil {
		var pe *domain.ProtocolError
		if errors.As(err, &pe) {
			c.logger.ErrorContext(ctx, "unexpected optimization payload", "reason", pe.Reason, "payload", pe.Payload)
		}
		return ports.VRPSolution{}, err
	}

	return sol, nil
}

func decodeSolution(body []byte) (ports.VRPSolution, error) {
	protocolErr := func(reason string) error {
		return &domain.ProtocolError{Op: "ors optimization", Reason: reason, Payload: string(body)}
	}

	var or optimizationResponse
	if err := json.Unmarshal(body, &or); err != nil {
		return ports.VRPSolution{}, protocolErr("decode response: " + err.Error())
	}

	if or.Code != nil && *or.Code != 0 {
		return ports.VRPSolution{}, &domain.UpstreamError{
			Op:         "ors optimization",
			StatusCode: http.StatusOK,
			Body:       fmt.Sprintf("solver code %d: %s", *or.Code, or.Error),
		}
	}

	if or.Routes == nil {
		return ports.VRPSolution{}, protocolErr("missing routes")
	}

	sol := ports.VRPSolution{Steps: []ports.VRPStep{}}
	for _, u := range or.Unassigned {
		sol.Unassigned = append(sol.Unassigned, u.ID)
	}

	var distance, duration float64
	for _, r := range *or.Routes {
		if r.Steps == nil {
			return ports.VRPSolution{}, protocolErr(fmt.Sprintf("route for vehicle %d has no steps", r.Vehicle))
		}
		for _, s := range *r.Steps {
			step := ports.VRPStep{Type: s.Type}
			if s.Type == ports.StepJob {
				switch {
				case s.Job != nil:
					step.JobID = *s.Job
				case s.ID != nil:
					step.JobID = *s.ID
				default:
					return ports.VRPSolution{}, protocolErr("job step without job reference")
				}
			}
			sol.Steps = append(sol.Steps, step)
		}
		distance += r.Distance
		duration += r.Duration
	}

	if or.Summary != nil {
		distance, duration = or.Summary.Distance, or.Summary.Duration
	}

	// ORS returns float metrics; round to nearest integer for domain consistency.
	sol.DistanceMeters = int(math.Round(distance))
	sol.DurationSeconds = int(math.Round(duration))

	return sol, nil
}
