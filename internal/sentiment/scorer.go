package sentiment

import (
	"context"

	"github.com/deusflow/finsent/internal/news"
)

// Scorer turns one article into a Result. It is built once per pipeline and
// shared read-only by all workers.
type Scorer struct {
	Lexicon    LexiconScorer
	Keywords   *Keywords
	Weights    Weights
	Thresholds news.Thresholds
}

// NewScorer returns a Scorer with the built-in lexicon and default keyword
// sets, weights and thresholds.
func NewScorer() *Scorer {
	return &Scorer{
		Lexicon:    NewLexicon(),
		Keywords:   NewKeywords(DefaultPositiveTerms, DefaultNegativeTerms),
		Weights:    DefaultWeights,
		Thresholds: news.DefaultThresholds,
	}
}

// Signals computes the model-independent part of the score.
func (s *Scorer) Signals(text string) news.Components {
	lex := news.Clamp(s.Lexicon.Compound(text))
	pos, neg := 0, 0
	if s.Keywords != nil {
		pos, neg = s.Keywords.Count(text)
	}
	return news.Components{
		Lexicon:  lex,
		Positive: pos,
		Negative: neg,
		Adjusted: Adjust(lex, pos, neg, s.Weights),
	}
}

// Score runs the full chain for one article. The returned error is a
// per-item model failure only; the Result is valid either way.
func (s *Scorer) Score(ctx context.Context, a news.Article, model Model) (news.Result, error) {
	text := Normalize(a.Headline, a.Summary)
	c := s.Signals(text)

	ms, err := model.Score(ctx, text)
	c.Model = ms

	return news.NewResult(a, Combine(c.Adjusted, ms, s.Weights), c, s.Thresholds), err
}
