package handlers

import (
	"manifest-route-service/internal/api/dto"
	"manifest-route-service/internal/domain"
	"manifest-route-service/internal/services"
)

func toStopInputs(stops []domain.ParsedStop) []dto.StopInput {
	out := make([]dto.StopInput, 0, len(stops))
	for _, s := range stops {
		out = append(out, dto.StopInput{
			StopIndex:          s.StopIndex,
			Address:            s.Address,
			City:               s.City,
			PackageCount:       s.PackageCount,
			DeliveryWindow:     s.DeliveryWindow,
			Kind:               string(s.Kind),
			SuspectedDuplicate: s.SuspectedDuplicate,
		})
	}
	return out
}

func fromStopInputs(in []dto.StopInput) []domain.ParsedStop {
	out := make([]domain.ParsedStop, 0, len(in))
	for i, s := range in {
		out = append(out, domain.ParsedStop{
			StopIndex:      i + 1,
			Address:        s.Address,
			City:           s.City,
			PackageCount:   s.PackageCount,
			DeliveryWindow: s.DeliveryWindow,
			Kind:           domain.ParseStopKind(s.Kind),
		})
	}
	return out
}

func toWarnings(ws []domain.ParseWarning) []dto.ParseWarning {
	out := make([]dto.ParseWarning, 0, len(ws))
	for _, w := range ws {
		out = append(out, dto.ParseWarning{Line: w.Line, Header: w.Header, Reason: w.Reason})
	}
	return out
}

func toCoordinates(c domain.Coordinates) dto.Coordinates {
	return dto.Coordinates{Lat: c.Lat, Lon: c.Lon}
}

func toRouteResponse(r domain.Route, stops []domain.Stop) dto.RouteResponse {
	res := dto.RouteResponse{
		ID:        r.ID,
		Name:      r.Name,
		OwnerID:   r.OwnerID,
		CreatedAt: r.CreatedAt,
		Stops:     make([]dto.StopResponse, 0, len(stops)),
	}
	for _, s := range stops {
		sr := dto.StopResponse{
			ID:                 s.ID,
			OriginalPosition:   s.OriginalPosition,
			OptimizedPosition:  s.OptimizedPosition,
			Address:            s.Address,
			City:               s.City,
			PackageCount:       s.PackageCount,
			DeliveryWindow:     s.DeliveryWindow,
			Kind:               string(s.Kind),
			Completed:          s.Completed,
			SuspectedDuplicate: s.SuspectedDuplicate,
		}
		if s.Coordinates != nil {
			c := toCoordinates(*s.Coordinates)
			sr.Coordinates = &c
		}
		res.Stops = append(res.Stops, sr)
	}
	return res
}

func toGeocodeResponse(b services.BatchResult, mode domain.KeySource) dto.GeocodeResponse {
	res := dto.GeocodeResponse{
		Attempted:    b.Attempted,
		Updated:      b.Updated,
		FailureCount: b.FailureCount,
		Failures:     make([]dto.GeocodeFailure, 0, len(b.Failures)),
		KeyMode:      string(mode),
	}
	for _, f := range b.Failures {
		res.Failures = append(res.Failures, dto.GeocodeFailure{StopID: f.StopID, Address: f.Address, Reason: f.Reason})
	}
	return res
}

func toOptimizeResponse(r services.RunResult) dto.OptimizeResponse {
	res := dto.OptimizeResponse{
		RunID:           r.RunID,
		OrderedStopIDs:  r.OrderedStopIDs,
		Coordinates:     make(map[string]dto.Coordinates, len(r.Coordinates)),
		Geocoded:        r.Geocoded,
		Algorithm:       r.Algorithm,
		KeyMode:         string(r.KeyMode),
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
	}
	for id, c := range r.Coordinates {
		res.Coordinates[id] = toCoordinates(c)
	}
	return res
}
