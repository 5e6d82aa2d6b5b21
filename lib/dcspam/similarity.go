package dcspam

import "strings"

// Similarity returns the jaccard index of word sets of two normalized texts, 0.0 - 1.0.
// Repeated words are counted once. If either text has no words, the result is 0.
func Similarity(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	// iterate over the smaller set
	if len(setA) > len(setB) {
		setA, setB = setB, setA
	}
	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	tokens := strings.Fields(text)
	res := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		res[t] = struct{}{}
	}
	return res
}
