// Package textmatch normalizes text and scores candidate strings against a
// free-text target by word-set overlap. It backs both section lookup and the
// element locator's fuzzy fallbacks.
package textmatch

import "strings"

// DefaultThreshold is the minimum overlap ratio for BestMatch to accept a
// candidate when the caller has no opinion.
const DefaultThreshold = 0.5

// Normalize lowercases s, collapses whitespace runs to single spaces, and
// trims. Idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// BestMatch returns the candidate that best matches target, its score, and
// whether any candidate reached threshold.
//
// An exact match after normalization short-circuits with score 1.0.
// Otherwise the score is the fraction of the target's words present in the
// candidate. The denominator is the target word count only: a candidate
// containing all target words scores 1.0 no matter how many extra words it
// carries. Ties keep the first candidate in iteration order.
func BestMatch(target string, candidates []string, threshold float64) (string, float64, bool) {
	target = Normalize(target)
	targetWords := wordSet(target)
	if len(targetWords) == 0 {
		return "", 0, false
	}

	var (
		best      string
		bestScore float64
		found     bool
	)
	for _, candidate := range candidates {
		norm := Normalize(candidate)
		if target == norm {
			return candidate, 1.0, true
		}

		candidateWords := wordSet(norm)
		overlap := 0
		for w := range targetWords {
			if candidateWords[w] {
				overlap++
			}
		}
		score := float64(overlap) / float64(len(targetWords))
		if score >= threshold && score > bestScore {
			bestScore = score
			best = candidate
			found = true
		}
	}
	return best, bestScore, found
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
