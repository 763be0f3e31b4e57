package catalog

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// nameMatcher finds the face name closest to a misspelt or differently
// formatted input in two passes:
//
//  1. Names sharing a Double Metaphone code with the input are candidates
//     and are ranked by Jaro-Winkler similarity, accepted above the phonetic
//     threshold.
//  2. Without a phonetic candidate, plain Jaro-Winkler similarity above the
//     stricter fuzzy threshold decides.
//
// Multi-word names ("Revolver Ocelot") are compared as full strings, with
// spaces stripped, and word by word; the best score wins.
type nameMatcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

type matcherOption func(*nameMatcher)

func withFuzzyThreshold(threshold float64) matcherOption {
	return func(m *nameMatcher) {
		m.fuzzyThreshold = threshold
		// A phonetic hit never needs a higher score than a plain one.
		m.phoneticThreshold = min(m.phoneticThreshold, threshold)
	}
}

func newNameMatcher(opts ...matcherOption) *nameMatcher {
	m := &nameMatcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the name from names most similar to input.
func (m *nameMatcher) Match(input string, names []string) (name string, score float64, ok bool) {
	inputLower := normalize(input)
	if len(names) == 0 || inputLower == "" {
		return "", 0, false
	}
	inputTokens := strings.Fields(inputLower)
	inputCodes := metaphoneCodes(inputTokens)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, n := range names {
		nameLower := normalize(n)
		if nameLower == "" {
			continue
		}
		nameTokens := strings.Fields(nameLower)
		phonetic := overlaps(inputCodes, metaphoneCodes(nameTokens))
		s := similarity(inputTokens, nameTokens, inputLower, nameLower)

		switch {
		case phonetic && s >= m.phoneticThreshold:
			if !bestPhonetic || s > bestScore {
				best, bestScore, bestPhonetic = n, s, true
			}
		case !phonetic && !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore:
			best, bestScore = n, s
		}
	}

	if best == "" {
		return "", 0, false
	}
	return best, bestScore, true
}

// metaphoneCodes returns the union of the Double Metaphone codes of tokens.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity returns the best Jaro-Winkler score of the full strings, the
// space-stripped strings, and every token pair.
func similarity(inputTokens, nameTokens []string, inputFull, nameFull string) float64 {
	score := matchr.JaroWinkler(inputFull, nameFull, false)

	if len(inputTokens) > 1 || len(nameTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inputTokens, ""), strings.Join(nameTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inputTokens {
		for _, nt := range nameTokens {
			if s := matchr.JaroWinkler(it, nt, false); s > score {
				score = s
			}
		}
	}
	return score
}
