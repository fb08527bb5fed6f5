// Package manifest turns raw courier manifests (OCR or pasted text, CSV) into
// candidate stops. Parsing never fails: blocks without a usable address are
// dropped and reported as warnings.
package manifest

import (
	"log/slog"
	"manifest-route-service/internal/domain"
	"strings"
)

type scanState int

const (
	seekingHeader scanState = iota
	inBlock
)

// Result of a parse. Stops carry StopIndex 1..len(Stops) in parse order.
type Result struct {
	Stops   []domain.ParsedStop
	Dropped []domain.ParseWarning
}

type block struct {
	line   int
	header string
	body   []string
}

// Parser is stateless apart from its logger and safe for concurrent use.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse with the default logger.
func Parse(raw string) Result {
	return NewParser(nil).Parse(raw)
}

func (p *Parser) Parse(raw string) Result {
	blocks := p.scan(raw)

	res := Result{
		Stops:   make([]domain.ParsedStop, 0, len(blocks)),
		Dropped: []domain.ParseWarning{},
	}
	for _, b := range blocks {
		stop, ok := buildStop(b)
		if !ok {
			w := domain.ParseWarning{Line: b.line, Header: b.header, Reason: "no address lines in block"}
			p.logger.Debug("manifest block dropped", "line", w.Line, "header", w.Header, "reason", w.Reason)
			res.Dropped = append(res.Dropped, w)
			continue
		}
		stop.StopIndex = len(res.Stops) + 1
		res.Stops = append(res.Stops, stop)
	}

	flagDuplicates(res.Stops)
	return res
}

// scan runs the seeking-header / in-block state machine over normalized,
// noise-free lines.
func (p *Parser) scan(raw string) []block {
	var (
		blocks []block
		cur    *block
		state  = seekingHeader
	)

	for i, rawLine := range splitLines(raw) {
		line := normalizeLine(rawLine)
		if isNoise(line) {
			continue
		}

		if isHeader(line) {
			blocks = append(blocks, block{line: i + 1, header: line})
			cur = &blocks[len(blocks)-1]
			state = inBlock
			continue
		}

		switch state {
		case seekingHeader:
			// Preamble before the first header carries no stop data.
		case inBlock:
			cur.body = append(cur.body, line)
		}
	}

	return blocks
}

func buildStop(b block) (domain.ParsedStop, bool) {
	stop := domain.ParsedStop{Kind: kindFromHeader(b.header)}

	for _, line := range append([]string{b.header}, b.body...) {
		if w, ok := matchWindow(line); ok {
			stop.DeliveryWindow = &w
			break
		}
	}

	if n, ok := firstCount(b); ok {
		stop.PackageCount = &n
	}

	address, city := splitAddress(b.body)
	if address == "" {
		return domain.ParsedStop{}, false
	}
	stop.Address = address
	stop.City = city

	return stop, true
}

// firstCount prefers a keyword-tied count anywhere in the block, then a bare
// count line in the body.
func firstCount(b block) (int, bool) {
	for _, line := range append([]string{b.header}, b.body...) {
		if n, ok := matchTiedCount(line); ok {
			return n, true
		}
	}
	for _, line := range b.body {
		if n, ok := matchBareCount(line); ok {
			return n, true
		}
	}
	return 0, false
}

// splitAddress accumulates address fragments until a city-shaped line that
// follows at least one fragment. Without one, a city-shaped last fragment of
// two or more is taken as the city. Time windows are cut out of the lines
// that carry them.
func splitAddress(body []string) (string, *string) {
	var (
		fragments []string
		city      *string
	)

	for _, line := range body {
		if isCountLine(line) {
			continue
		}
		if _, ok := matchWindow(line); ok {
			if line = stripWindow(line); line == "" {
				continue
			}
		}
		if len(fragments) > 0 && looksLikeCity(line) {
			c := line
			city = &c
			break
		}
		fragments = append(fragments, line)
	}

	if city == nil && len(fragments) >= 2 {
		last := fragments[len(fragments)-1]
		if looksLikeCity(last) {
			city = &last
			fragments = fragments[:len(fragments)-1]
		}
	}

	return strings.TrimSpace(strings.Join(fragments, " ")), city
}
