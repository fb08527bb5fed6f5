package manifest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var zeroWidth = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
	"\u00ad", "",
)

var bulletRe = regexp.MustCompile(`[•·▪▫●◦‣∙■□►▶➤➢✓✔]+`)

// normalizeLine folds compatibility forms (NBSP, full-width digits), removes
// zero-width characters, turns bullet glyphs into spaces and collapses whitespace.
func normalizeLine(s string) string {
	s = norm.NFKC.String(s)
	s = zeroWidth.Replace(s)
	s = bulletRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// splitLines accepts \n, \r\n and bare \r line endings.
func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	return strings.Split(raw, "\n")
}
