package services

import (
	"context"
	"errors"
	"log/slog"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/ports"
	"strings"
)

const (
	// BatchCap bounds the provider calls made by one GeocodeBatch invocation.
	BatchCap = 25

	maxFailureDetails = 10
)

type GeocodeFailure struct {
	StopID  string
	Address string
	Reason  string
}

// BatchResult summarizes one batch. Failures holds at most 10 entries;
// FailureCount is the full number of failed stops.
type BatchResult struct {
	Attempted    int
	Updated      int
	Failures     []GeocodeFailure
	FailureCount int
}

// BatchGeocoder fills missing coordinates for up to BatchCap stops per call.
// A failing stop never aborts the batch and the call itself never errors.
type BatchGeocoder struct {
	geocoder ports.Geocoder
	stops    ports.StopRepository
	logger   *slog.Logger
}

func NewBatchGeocoder(geocoder ports.Geocoder, stops ports.StopRepository, logger *slog.Logger) *BatchGeocoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchGeocoder{geocoder: geocoder, stops: stops, logger: logger}
}

func (b *BatchGeocoder) GeocodeBatch(ctx context.Context, stops []domain.Stop, cred domain.Credential) BatchResult {
	pending := make([]domain.Stop, 0, BatchCap)
	for _, st := range stops {
		if st.HasCoordinates() {
			continue
		}
		pending = append(pending, st)
		if len(pending) == BatchCap {
			break
		}
	}

	res := BatchResult{Attempted: len(pending), Failures: []GeocodeFailure{}}

	fail := func(st domain.Stop, address, reason string) {
		res.FailureCount++
		b.logger.WarnContext(ctx, "geocode stop failed",
			"stop_id", st.ID, "position", st.OriginalPosition, "reason", reason)
		if len(res.Failures) < maxFailureDetails {
			res.Failures = append(res.Failures, GeocodeFailure{StopID: st.ID, Address: address, Reason: reason})
		}
	}

	for _, st := range pending {
		address := strings.TrimSpace(st.Address)
		if ctx.Err() != nil {
			fail(st, address, failureReason(context.Cause(ctx)))
			continue
		}
		if address == "" {
			fail(st, "", "address is empty")
			continue
		}

		coords, err := b.geocoder.Geocode(ctx, address, cred)
		switch {
		case err != nil:
			fail(st, address, failureReason(err))
			continue
		case coords == nil:
			fail(st, address, "no match")
			continue
		}

		// Persist per stop so progress survives an interrupted batch.
		if err := b.stops.UpdateCoordinates(ctx, st.ID, *coords); err != nil {
			fail(st, address, "store coordinates: "+err.Error())
			continue
		}
		res.Updated++
	}

	return res
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrLeaseLost):
		return "route lease lost"
	case errors.Is(err, domain.ErrNoCredential):
		return "no provider credential"
	case errors.Is(err, domain.ErrProtocol):
		return "unexpected provider response"
	case errors.Is(err, domain.ErrUpstream):
		return "provider unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	}
	return err.Error()
}
