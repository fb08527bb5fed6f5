package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"manifest-route-service/internal/domain"
	"strconv"
	"strings"
)

// ParseCSV reads a manifest exported as CSV. The header row names the columns
// (address, city, packages, window, kind) in any order; only address is required.
// Rows without an address are dropped and reported.
func ParseCSV(r io.Reader) (Result, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Result{Stops: []domain.ParsedStop{}, Dropped: []domain.ParseWarning{}}, nil
	}
	if err != nil {
		return Result{}, &domain.InputError{Reason: fmt.Sprintf("read csv header: %v", err)}
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(normalizeLine(h))] = i
	}
	if _, ok := cols["address"]; !ok {
		return Result{}, &domain.InputError{Reason: "csv header must include an address column"}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return normalizeLine(rec[i])
	}

	res := Result{Stops: []domain.ParsedStop{}, Dropped: []domain.ParseWarning{}}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return Result{}, &domain.InputError{Reason: fmt.Sprintf("read csv line %d: %v", line, err)}
		}

		address := field(rec, "address")
		if address == "" {
			res.Dropped = append(res.Dropped, domain.ParseWarning{Line: line, Reason: "empty address"})
			continue
		}

		stop := domain.ParsedStop{
			StopIndex: len(res.Stops) + 1,
			Address:   address,
			Kind:      domain.ParseStopKind(field(rec, "kind")),
		}
		if c := field(rec, "city"); c != "" {
			stop.City = &c
		}
		if n, err := strconv.Atoi(field(rec, "packages")); err == nil && n >= 0 {
			stop.PackageCount = &n
		}
		if w := field(rec, "window"); w != "" {
			if norm, ok := matchWindow(w); ok {
				w = norm
			}
			stop.DeliveryWindow = &w
		}
		res.Stops = append(res.Stops, stop)
	}

	flagDuplicates(res.Stops)
	return res, nil
}
