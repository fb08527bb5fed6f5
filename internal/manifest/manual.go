package manifest

import (
	"manifest-route-service/internal/domain"
	"strings"
)

// FromEntries normalizes manually entered stops the same way parsed ones are:
// whitespace is collapsed, entries without an address are dropped, indexes are
// reassigned densely and duplicates are flagged.
func FromEntries(entries []domain.ParsedStop) Result {
	res := Result{
		Stops:   make([]domain.ParsedStop, 0, len(entries)),
		Dropped: []domain.ParseWarning{},
	}

	for i, e := range entries {
		e.Address = domain.NormalizeAddress(normalizeLine(e.Address))
		if e.Address == "" {
			res.Dropped = append(res.Dropped, domain.ParseWarning{Line: i + 1, Reason: "entry has no address"})
			continue
		}
		if e.City != nil {
			c := strings.TrimSpace(normalizeLine(*e.City))
			if c == "" {
				e.City = nil
			} else {
				e.City = &c
			}
		}
		if e.Kind == "" {
			e.Kind = domain.StopKindDelivery
		}
		e.SuspectedDuplicate = nil
		e.StopIndex = len(res.Stops) + 1
		res.Stops = append(res.Stops, e)
	}

	flagDuplicates(res.Stops)
	return res
}
