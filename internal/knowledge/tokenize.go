package knowledge

import "strings"

// tokenize lower-cases phrase and splits on whitespace and a fixed
// punctuation set, dropping empties.
func tokenize(phrase string) map[string]struct{} {
	phrase = strings.ToLower(phrase)
	fields := strings.FieldsFunc(phrase, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '\r', '.', ',', '!', '?', ';', ':', '(', ')':
			return true
		}
		return false
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

// jaccard computes |A∩B| / |A∪B| over two token sets. Two empty sets are
// defined as similarity 0 (no evidence of overlap).
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// overlapScore is used by FindPatternByTriggers: the maximum Jaccard
// similarity between the query's token set and any one of a pattern's
// trigger phrases, folded into a [0,1] overlap measure.
func overlapScore(queryTokens map[string]struct{}, triggerPhrase string) float64 {
	return jaccard(queryTokens, tokenize(triggerPhrase))
}
