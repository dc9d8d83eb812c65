package sentiment

import (
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/deusflow/finsent/internal/news"
)

// Default financial keyword sets.
var (
	DefaultPositiveTerms = []string{
		"growth", "surge", "profit", "increase", "gain",
		"uptrend", "rally", "boom", "bullish", "rise",
	}
	DefaultNegativeTerms = []string{
		"loss", "decline", "drop", "plunge", "fall",
		"bearish", "downtrend", "crash", "collapse", "slump",
	}
)

// Keywords counts domain term occurrences in normalized text.
//
// Counting is raw substring counting: "rise" inside "sunrise" counts, and a
// term seen twice counts twice. The automaton only decides which terms are
// present; strings.Count does the counting.
type Keywords struct {
	positive termSet
	negative termSet
}

type termSet struct {
	terms   []string
	matcher *ahocorasick.Matcher
}

func newTermSet(terms []string) termSet {
	seen := make(map[string]struct{}, len(terms))
	clean := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		clean = append(clean, t)
	}

	ts := termSet{terms: clean}
	if len(clean) > 0 {
		ts.matcher = ahocorasick.NewStringMatcher(clean)
	}
	return ts
}

func (ts termSet) count(text string) int {
	if ts.matcher == nil || text == "" {
		return 0
	}
	total := 0
	for _, idx := range ts.matcher.MatchThreadSafe([]byte(text)) {
		if idx < 0 || idx >= len(ts.terms) {
			continue
		}
		total += strings.Count(text, ts.terms[idx])
	}
	return total
}

// NewKeywords builds the matcher. Terms are lowercased, trimmed and
// deduplicated.
func NewKeywords(positive, negative []string) *Keywords {
	return &Keywords{
		positive: newTermSet(positive),
		negative: newTermSet(negative),
	}
}

// Count returns the positive and negative occurrence counts in text.
func (k *Keywords) Count(text string) (pos, neg int) {
	return k.positive.count(text), k.negative.count(text)
}

// Adjust nudges a lexicon score by the keyword counts and clamps the result.
func Adjust(lexicon float64, pos, neg int, w Weights) float64 {
	return news.Clamp(lexicon + w.KeywordPositive*float64(pos) - w.KeywordNegative*float64(neg))
}
