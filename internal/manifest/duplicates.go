package manifest

import (
	"manifest-route-service/internal/domain"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	duplicateMaxDistance = 2
	duplicateMinLength   = 6
)

// flagDuplicates marks stops whose address is within a small edit distance of
// an earlier stop in the same city. Nothing is removed; review happens downstream.
func flagDuplicates(stops []domain.ParsedStop) {
	keys := make([]string, len(stops))
	for i, s := range stops {
		keys[i] = strings.ToLower(s.Address)
	}

	for i := range stops {
		if utf8.RuneCountInString(keys[i]) < duplicateMinLength {
			continue
		}
		for j := 0; j < i; j++ {
			if !sameCity(stops[i].City, stops[j].City) {
				continue
			}
			if levenshtein.ComputeDistance(keys[i], keys[j]) <= duplicateMaxDistance {
				idx := stops[j].StopIndex
				stops[i].SuspectedDuplicate = &idx
				break
			}
		}
	}
}

func sameCity(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return strings.EqualFold(*a, *b)
}
