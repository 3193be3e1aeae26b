package connector

import (
	"strings"
)

// defaultFuzzyThreshold is the Jaccard similarity above which two texts
// are considered likely duplicates. No fuzzy-text matching library
// exists anywhere in the retrieved corpus, so this is a small
// hand-rolled token-set comparison rather than a hand-rolled
// replacement for something the ecosystem already provides.
const defaultFuzzyThreshold = 0.6

// tokenSet lowercases and splits text into a deduplicated set of words,
// used as the basis for Jaccard similarity.
func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		field = strings.Trim(field, ".,;:!?\"'()[]")
		if field == "" {
			continue
		}
		set[field] = struct{}{}
	}
	return set
}

// jaccardSimilarity returns |A ∩ B| / |A ∪ B| over the token sets of a
// and b, 0 when both are empty.
func jaccardSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
