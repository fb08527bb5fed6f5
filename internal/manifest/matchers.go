package manifest

import (
	"fmt"
	"manifest-route-service/internal/domain"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Each matcher below inspects a single normalized line and is independent of
// scanner state.

var (
	loneNumberRe = regexp.MustCompile(`^\d{1,3}$`)
	symbolOnlyRe = regexp.MustCompile(`^[^\p{L}\p{N}]{1,3}$`)

	deliveryWordRe  = regexp.MustCompile(`(?i)\b(?:consegn\w*|deliver\w*)`)
	scheduledWordRe = regexp.MustCompile(`(?i)\b(?:programmat\w*|pianificat\w*|scheduled)\b`)
	pickupWordRe    = regexp.MustCompile(`(?i)\b(?:ritir\w*|pick[\s-]?ups?)\b`)

	// A 1-3 digit token not glued to other digits or to a clock separator.
	stopNumberRe = regexp.MustCompile(`(?:^|[^\d:.,])#?\d{1,3}(?:[^\d:]|$)`)

	clockRe  = regexp.MustCompile(`\d{1,2}:\d{2}`)
	windowRe = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\s*[-–.]\s*([01]?\d|2[0-3]):([0-5]\d)\b`)

	// What may surround a window on its own line ("Fascia oraria:", "ore").
	windowLabelRe = regexp.MustCompile(`(?i)^(?:fascia(?:\s+oraria)?|orario|ore|dalle|window|time)?[\s:.,;\-–()]*$`)

	packageUnit = `(?:pacch\w*|pacco|colli|collo|pz|pezzi|packages?|parcels?|pkgs?|pcs)`

	tiedCountRe = regexp.MustCompile(`(?i)\b(?:consegn\w*|deliver\w*|ritir\w*|pick[\s-]?ups?)\b[\s:.\-]*(\d{1,3})\s*` + packageUnit + `\b`)
	bareCountRe = regexp.MustCompile(`(?i)^(?:(\d{1,3})\s*` + packageUnit + `|` + packageUnit + `\s*[:.]?\s*(\d{1,3}))$`)

	cityShapeRe = regexp.MustCompile(`^\p{L}[\p{L}\s'’.\-()]*$`)
)

// OCR artifacts that carry no stop data.
var noiseLabels = map[string]struct{}{
	"positions": {},
	"posizioni": {},
	"posizione": {},
}

// Words that open a street or building line rather than a locality.
var streetPrefixes = map[string]struct{}{
	"via": {}, "viale": {}, "v.le": {}, "piazza": {}, "p.za": {}, "piazzale": {}, "corso": {}, "c.so": {},
	"largo": {}, "vicolo": {}, "strada": {}, "str.": {}, "località": {}, "loc.": {}, "scala": {},
	"interno": {}, "int.": {}, "piano": {}, "presso": {}, "c/o": {}, "street": {}, "avenue": {},
	"road": {}, "lane": {}, "drive": {}, "boulevard": {}, "apt": {}, "suite": {},
}

func isNoise(line string) bool {
	if line == "" {
		return true
	}
	if loneNumberRe.MatchString(line) || symbolOnlyRe.MatchString(line) {
		return true
	}
	_, ok := noiseLabels[strings.ToLower(line)]
	return ok
}

// isHeader reports whether the line opens a new stop block: a stop-number
// marker together with a delivery, scheduled or pickup keyword.
func isHeader(line string) bool {
	if !deliveryWordRe.MatchString(line) && !scheduledWordRe.MatchString(line) && !pickupWordRe.MatchString(line) {
		return false
	}
	return stopNumberRe.MatchString(clockRe.ReplaceAllString(line, " "))
}

func kindFromHeader(header string) domain.StopKind {
	if pickupWordRe.MatchString(header) {
		return domain.StopKindPickup
	}
	return domain.StopKindDelivery
}

// matchWindow returns the first HH:MM-HH:MM range in the line with hours
// left-padded to two digits.
func matchWindow(line string) (string, bool) {
	m := windowRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%02d:%s-%02d:%s", from, m[2], to, m[4]), true
}

// stripWindow removes time windows from a line and returns the text left
// around them, or "" when nothing but a window label remains.
func stripWindow(line string) string {
	rest := strings.Join(strings.Fields(windowRe.ReplaceAllString(line, " ")), " ")
	if windowLabelRe.MatchString(rest) {
		return ""
	}
	return strings.TrimRight(rest, " ,;-–")
}

// matchTiedCount extracts a package count tied to a delivery or pickup keyword.
func matchTiedCount(line string) (int, bool) {
	m := tiedCountRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// matchBareCount matches a line that is only a package count ("4 pacchi", "Colli: 2").
func matchBareCount(line string) (int, bool) {
	m := bareCountRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	digits := m[1]
	if digits == "" {
		digits = m[2]
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isCountLine(line string) bool {
	if _, ok := matchBareCount(line); ok {
		return true
	}
	_, ok := matchTiedCount(line)
	return ok
}

// looksLikeCity: alphabetic with limited punctuation, at most 40 characters,
// not opening with a street word.
func looksLikeCity(line string) bool {
	if utf8.RuneCountInString(line) > 40 || !cityShapeRe.MatchString(line) {
		return false
	}
	if deliveryWordRe.MatchString(line) || pickupWordRe.MatchString(line) || scheduledWordRe.MatchString(line) {
		return false
	}
	first := strings.ToLower(strings.Fields(line)[0])
	_, street := streetPrefixes[first]
	return !street
}
