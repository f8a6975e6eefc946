// Package analysis turns raw text into normalized, stemmed tokens suitable for
// indexing and querying. The pipeline is deterministic and total: it never
// fails and always produces the same token sequence for the same input.
package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball/portuguese"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/hupe1980/ftsearch/internal/arena"
)

const (
	minTokenLen = 2
	maxTokenLen = 25
)

// asciiFolder strips combining marks left behind by NFKD decomposition,
// approximating a transliteration of accented Latin text to plain ASCII.
var asciiFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Analyze normalizes text into a sequence of stemmed tokens: transliterate to
// ASCII, lowercase, split on non-alphabetic runs, drop tokens outside
// [2, 25] runes, and stem with the Portuguese Snowball stemmer. The stemmer
// is fixed; there is no option to select another language or algorithm.
func Analyze(text string) []string {
	folded, _, err := transform.String(asciiFolder, text)
	if err != nil {
		// transform.String only errors on malformed input encoding; fall back
		// to the original text rather than dropping the document.
		folded = text
	}
	folded = strings.ToLower(folded)

	tokens := make([]string, 0, len(folded)/6)
	start := -1
	for i, r := range folded {
		if r >= 'a' && r <= 'z' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			tokens = appendToken(tokens, folded[start:i])
			start = -1
		}
	}
	if start >= 0 {
		tokens = appendToken(tokens, folded[start:])
	}
	return tokens
}

func appendToken(tokens []string, tok string) []string {
	n := len([]rune(tok))
	if n < minTokenLen || n > maxTokenLen {
		return tokens
	}
	stemmed, err := portuguese.Stem(tok, false)
	if err != nil {
		stemmed = tok
	}
	return append(tokens, stemmed)
}

// AnalyzeArena behaves identically to Analyze but allocates token storage out
// of ar instead of the Go heap, so a caller processing many chunks of the same
// document can Reset the arena between documents instead of paying per-token
// GC pressure.
func AnalyzeArena(text string, ar *arena.Arena) []string {
	folded, _, err := transform.String(asciiFolder, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)

	tokens := make([]string, 0, len(folded)/6)
	start := -1
	for i, r := range folded {
		if r >= 'a' && r <= 'z' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if tok, ok := arenaToken(folded[start:i], ar); ok {
				tokens = append(tokens, tok)
			}
			start = -1
		}
	}
	if start >= 0 {
		if tok, ok := arenaToken(folded[start:], ar); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func arenaToken(tok string, ar *arena.Arena) (string, bool) {
	n := len([]rune(tok))
	if n < minTokenLen || n > maxTokenLen {
		return "", false
	}
	stemmed, err := portuguese.Stem(tok, false)
	if err != nil {
		stemmed = tok
	}
	return ar.String(stemmed), true
}
