// Package textmatch compares an ASR transcript against the phrase the speaker
// was asked to read. Comparison is case- and punctuation-insensitive and
// tolerates small recognition errors via normalized edit distance.
package textmatch

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Normalize lowercases the text, strips everything except letters, digits and
// spaces, and collapses runs of whitespace.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Similarity returns a score in [0,1]: 1 for identical normalized texts,
// falling with edit distance relative to the longer text.
func Similarity(expected, transcript string) float64 {
	a := Normalize(expected)
	b := Normalize(transcript)

	if a == "" && b == "" {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	dist := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	return 1 - float64(dist)/float64(longest)
}

// Matches reports whether the transcript matches the expected phrase within
// the given tolerance (a minimum Similarity value).
func Matches(expected, transcript string, tolerance float64) bool {
	return Similarity(expected, transcript) >= tolerance
}
