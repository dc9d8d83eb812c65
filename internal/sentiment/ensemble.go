package sentiment

import (
	"fmt"

	"github.com/deusflow/finsent/internal/news"
)

// Weights are the tunable constants of the scoring pipeline.
type Weights struct {
	// KeywordPositive and KeywordNegative are applied per term occurrence.
	KeywordPositive float64
	KeywordNegative float64
	// Lexicon and Model weight the two signals when a model is present.
	Lexicon float64
	Model   float64
}

// DefaultWeights: 0.1 per keyword occurrence, 0.6/0.4 ensemble.
var DefaultWeights = Weights{
	KeywordPositive: 0.1,
	KeywordNegative: 0.1,
	Lexicon:         0.6,
	Model:           0.4,
}

// Validate rejects negative weights.
func (w Weights) Validate() error {
	if w.KeywordPositive < 0 || w.KeywordNegative < 0 {
		return fmt.Errorf("keyword weights must be non-negative (pos=%v neg=%v)", w.KeywordPositive, w.KeywordNegative)
	}
	if w.Lexicon < 0 || w.Model < 0 {
		return fmt.Errorf("ensemble weights must be non-negative (lexicon=%v model=%v)", w.Lexicon, w.Model)
	}
	return nil
}

// Combine fuses the lexicon+keyword score with the model score.
// Without a model the adjusted score is returned unchanged.
func Combine(adjusted float64, model news.ModelScore, w Weights) float64 {
	adjusted = news.Clamp(adjusted)
	if !model.Available {
		return adjusted
	}
	return news.Clamp(w.Lexicon*adjusted + w.Model*news.Clamp(model.Value))
}
