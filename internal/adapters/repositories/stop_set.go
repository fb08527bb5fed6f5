package repositories

import (
	"fmt"
	"manifest-route-service/internal/domain"
)

// checkPermutation verifies ordered is a complete, duplicate-free ordering of
// the route's stop ids.
func checkPermutation(routeID string, existing []string, ordered []string) error {
	if len(ordered) != len(existing) {
		return &domain.InputError{Reason: fmt.Sprintf(
			"route %s: optimized order has %d stops, route has %d", routeID, len(ordered), len(existing))}
	}

	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = false
	}
	for _, id := range ordered {
		used, ok := known[id]
		if !ok {
			return &domain.InputError{StopID: id, Reason: fmt.Sprintf("stop does not belong to route %s", routeID)}
		}
		if used {
			return &domain.InputError{StopID: id, Reason: "stop appears twice in optimized order"}
		}
		known[id] = true
	}
	return nil
}

func materialize(route domain.Route, parsed []domain.ParsedStop, newID func() string) ([]domain.Stop, error) {
	stops := make([]domain.Stop, 0, len(parsed))
	for i, p := range parsed {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		kind := p.Kind
		if kind == "" {
			kind = domain.StopKindDelivery
		}
		stops = append(stops, domain.Stop{
			ID:                 newID(),
			RouteID:            route.ID,
			OriginalPosition:   i + 1,
			Address:            domain.NormalizeAddress(p.Address),
			City:               p.City,
			PackageCount:       p.PackageCount,
			DeliveryWindow:     p.DeliveryWindow,
			Kind:               kind,
			SuspectedDuplicate: p.SuspectedDuplicate,
			CreatedAt:          route.CreatedAt,
		})
	}
	return stops, nil
}
