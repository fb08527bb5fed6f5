package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks caller-correctable failures (empty address, too few stops,
	// ungeocodable address during a strict run). Handlers map it to 422.
	ErrInput = errors.New("invalid input")

	// ErrUpstream marks a non-success response from an external provider.
	// Retryable by the caller later, never automatically.
	ErrUpstream = errors.New("upstream provider error")

	// ErrProtocol marks a provider response with an unexpected shape.
	ErrProtocol = errors.New("provider protocol error")

	// ErrNotFound is returned when a route or stop does not exist.
	ErrNotFound = errors.New("not found")

	// ErrRunInProgress is returned when another run holds the route lease.
	ErrRunInProgress = errors.New("optimization already running for route")

	// ErrLeaseLost is returned when a route lease expired or was taken over
	// while its holder was still working.
	ErrLeaseLost = errors.New("route lease lost")

	// ErrForbidden is returned when a route belongs to another user.
	ErrForbidden = errors.New("route belongs to another user")

	// ErrNoCredential is returned when neither a user nor a shared provider key exists.
	ErrNoCredential = errors.New("no provider credential configured")
)

// InputError names the stop and address the caller must fix.
type InputError struct {
	StopID  string
	Address string
	Reason  string
}

func (e *InputError) Error() string {
	switch {
	case e.StopID != "" && e.Address != "":
		return fmt.Sprintf("%s (stop %s, address %q)", e.Reason, e.StopID, e.Address)
	case e.StopID != "":
		return fmt.Sprintf("%s (stop %s)", e.Reason, e.StopID)
	case e.Address != "":
		return fmt.Sprintf("%s (address %q)", e.Reason, e.Address)
	}
	return e.Reason
}

func (e *InputError) Unwrap() error { return ErrInput }

// UpstreamError is a transport failure or non-2xx provider response.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstream, e.Err}
	}
	return []error{ErrUpstream}
}

// ProtocolError carries the raw payload of a response that could not be mapped.
type ProtocolError struct {
	Op      string
	Reason  string
	Payload string
}

func (e *ProtocolError) Error() string { return fmt.Sprintf("%s: %s", e.Op, e.Reason) }

func (e *ProtocolError) Unwrap() error { return ErrProtocol }

// PartialPlanError reports stops the solver left unassigned. The run that
// received it persists nothing.
type PartialPlanError struct {
	Unassigned []string
}

func (e *PartialPlanError) Error() string {
	return fmt.Sprintf("solver returned a partial plan: %d stop(s) unassigned", len(e.Unassigned))
}

func (e *PartialPlanError) Unwrap() error { return ErrUpstream }

// ParseWarning records a manifest block dropped during parsing. It is data,
// not an error.
type ParseWarning struct {
	Line   int
	Header string
	Reason string
}
