package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases text and strips diacritics so that "CAFÉ" matches
// "cafe". Imported spreadsheets and hand-typed inventory rows disagree on
// accents, so equality on garment names must not depend on them.
func Fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// FoldEqual reports whether two strings are equal after folding.
func FoldEqual(a, b string) bool {
	return Fold(a) == Fold(b)
}
