package sentiment

import (
	"github.com/jonreiter/govader"
)

// LexiconScorer maps normalized text to a compound polarity in [-1, 1].
// Implementations must be deterministic and safe for concurrent use.
type LexiconScorer interface {
	Compound(text string) float64
}

// Lexicon scores text with the VADER valence lexicon and rules. The
// analyzer's tables are built once and only read afterwards, so a single
// Lexicon is shared by every scoring worker.
type Lexicon struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

var _ LexiconScorer = (*Lexicon)(nil)

// NewLexicon loads the VADER lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Compound returns the VADER compound score. Empty or valence-free text
// scores 0.
func (l *Lexicon) Compound(text string) float64 {
	if text == "" {
		return 0
	}
	return l.analyzer.PolarityScores(text).Compound
}
