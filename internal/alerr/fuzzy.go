package alerr

import (
	"fmt"
	"strings"
)

// maxSuggestDistance bounds how far a typo may be from a known name before
// no suggestion is offered.
const maxSuggestDistance = 3

// levenshteinDistance computes the edit distance between two strings,
// counting runes rather than bytes.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}
	a, b := []rune(s1), []rune(s2)
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// FindClosestMatch returns the option nearest to input, compared case
// insensitively, if it lies within the suggestion distance.
func FindClosestMatch(input string, options []string) (string, bool) {
	needle := strings.ToLower(input)
	best, bestDist := "", maxSuggestDistance+1
	for _, opt := range options {
		if d := levenshteinDistance(needle, strings.ToLower(opt)); d < bestDist {
			best, bestDist = opt, d
		}
	}
	if bestDist <= maxSuggestDistance {
		return best, true
	}
	return "", false
}

// SuggestSimilar returns "did you mean 'X'?" for a close match, or "".
func SuggestSimilar(input string, options []string) string {
	if match, ok := FindClosestMatch(input, options); ok {
		return fmt.Sprintf("did you mean '%s'?", match)
	}
	return ""
}

// Unknown builds an error for a name that is not one of options and attaches
// a suggestion when one is close enough.
func Unknown(code Code, what, input string, options []string) *Error {
	err := Newf(code, "unknown %s %q", what, input)
	if hint := SuggestSimilar(input, options); hint != "" {
		err.WithHelp(hint)
	}
	return err
}
