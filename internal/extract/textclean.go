package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanText normalizes extracted text: NFC, format characters removed
// (zero-width spaces, BOMs and the like that listing sites sprinkle into
// text nodes), all runs of whitespace (including NBSP) collapsed to single
// spaces, ends trimmed.
//
// The transform chain is built per call; chained transformers carry internal
// buffers and must not be shared across goroutines.
func CleanText(s string) string {
	cleaner := transform.Chain(norm.NFC, runes.Remove(runes.In(unicode.Cf)))
	out, _, err := transform.String(cleaner, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(out), " ")
}
