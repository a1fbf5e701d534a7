package classifier

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize casefolds s, decomposes it (NFKD) and strips combining marks, so
// "Größe" and "grosse" compare equal. Runs of whitespace collapse to one space.
func Normalize(s string) string {
	folded := cases.Fold().String(s)
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, folded)
	if err != nil {
		out = folded
	}
	return strings.Join(strings.Fields(out), " ")
}

// tokenCount approximates tokens by whitespace-separated words of the raw query.
func tokenCount(s string) int {
	return len(strings.Fields(s))
}
