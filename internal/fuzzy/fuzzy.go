// Package fuzzy provides approximate string matching for resolving
// agent-reported node titles that may have drifted slightly across LLM
// pipeline stages (typos, rewording, casing differences).
package fuzzy

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultThreshold is the similarity ratio below which two titles are
// considered not to match. Tuned empirically; treat as a single named
// constant rather than inlining it at call sites.
const DefaultThreshold = 0.6

// Ratio returns a similarity score in [0, 1] between a and b, computed as a
// Jaro-Winkler ratio over the case-folded strings. 1.0 means identical.
func Ratio(a, b string) float64 {
	if a == b {
		return 1
	}
	return matchr.JaroWinkler(strings.ToLower(a), strings.ToLower(b), true)
}

// BestMatch scans candidates and returns the index of the entry with the
// highest Ratio(query, candidate), along with that ratio. Returns (-1, 0)
// when candidates is empty. Ties are broken in favor of the earliest index.
func BestMatch(query string, candidates []string) (index int, ratio float64) {
	index = -1
	for i, c := range candidates {
		r := Ratio(query, c)
		if r > ratio {
			ratio = r
			index = i
		}
	}
	return index, ratio
}

// Matches reports whether ratio meets or exceeds threshold. A threshold <= 0
// falls back to [DefaultThreshold].
func Matches(ratio, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return ratio >= threshold
}
