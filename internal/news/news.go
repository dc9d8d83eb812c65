package news

import (
	"math"
	"time"
)

// Article is a single news item as handed over by an ingestion source.
// URL is the identity key used for deduplication.
type Article struct {
	Headline    string     `json:"headline" yaml:"headline"`
	Summary     string     `json:"summary" yaml:"summary"`
	URL         string     `json:"url" yaml:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	Source      string     `json:"source,omitempty" yaml:"source,omitempty"`
}

// ModelScore is the model signal of one article. Available is false when
// no model was loaded for the run.
type ModelScore struct {
	Value     float64 `json:"value"`
	Available bool    `json:"available"`
	// Failed marks a per-item inference failure; Value is then 0.
	Failed bool `json:"failed,omitempty"`
}

// Components keeps every intermediate signal that went into a Result.
type Components struct {
	Lexicon  float64    `json:"lexicon"`
	Positive int        `json:"keyword_pos"`
	Negative int        `json:"keyword_neg"`
	Adjusted float64    `json:"adjusted"`
	Model    ModelScore `json:"model"`
}

// Result is the scored form of an Article.
type Result struct {
	Article    Article    `json:"article"`
	Compound   float64    `json:"compound"`
	Category   Category   `json:"category"`
	Components Components `json:"components"`
}

// NewResult builds a Result whose category is always derived from the
// clamped compound score.
func NewResult(a Article, compound float64, c Components, th Thresholds) Result {
	compound = Clamp(compound)
	return Result{
		Article:    a,
		Compound:   compound,
		Category:   Classify(compound, th),
		Components: c,
	}
}

// Clamp bounds v to [-1, 1]. NaN collapses to 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-1, math.Min(1, v))
}
