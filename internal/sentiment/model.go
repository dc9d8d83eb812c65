package sentiment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/deusflow/finsent/internal/news"
)

// ErrModelUnavailable is wrapped by every reason a model could not be used.
var ErrModelUnavailable = errors.New("sentiment model unavailable")

// Probabilities is the output of a 3-class sentiment classifier.
type Probabilities struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
	Negative float64 `json:"negative"`
}

// Normalized rescales the probabilities to sum to 1. It fails on negative,
// NaN or all-zero input.
func (p Probabilities) Normalized() (Probabilities, error) {
	for _, v := range []float64{p.Positive, p.Neutral, p.Negative} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return Probabilities{}, fmt.Errorf("invalid probabilities %+v", p)
		}
	}
	sum := p.Positive + p.Neutral + p.Negative
	if sum == 0 {
		return Probabilities{}, fmt.Errorf("invalid probabilities %+v: all zero", p)
	}
	return Probabilities{
		Positive: p.Positive / sum,
		Neutral:  p.Neutral / sum,
		Negative: p.Negative / sum,
	}, nil
}

// Polarity is P(positive) - P(negative), bounded to [-1, 1].
func (p Probabilities) Polarity() float64 {
	return news.Clamp(p.Positive - p.Negative)
}

// ProbabilityClassifier is a loaded model backend.
type ProbabilityClassifier interface {
	Classify(ctx context.Context, text string) (Probabilities, error)
}

// Model is the optional model capability of one run. It is either Present
// (wrapping a loaded backend) or Absent, and never changes after creation.
type Model struct {
	clf    ProbabilityClassifier
	reason error
}

// Present wraps a loaded backend.
func Present(clf ProbabilityClassifier) Model {
	if clf == nil {
		return Absent(errors.New("nil classifier"))
	}
	return Model{clf: clf}
}

// Absent is a model that was never loaded. reason may be nil when the model
// is simply disabled.
func Absent(reason error) Model {
	if reason == nil {
		reason = errors.New("disabled by configuration")
	}
	return Model{reason: fmt.Errorf("%w: %w", ErrModelUnavailable, reason)}
}

// Available reports whether the model is Present.
func (m Model) Available() bool { return m.clf != nil }

// Reason explains why the model is Absent; nil when Present.
func (m Model) Reason() error { return m.reason }

// Score runs the model on one normalized text.
//
// Absent models return an unavailable ModelScore and no error. A Present
// model that fails on this item returns a neutral 0 score marked Failed,
// together with the error so the caller can count it.
func (m Model) Score(ctx context.Context, text string) (news.ModelScore, error) {
	if m.clf == nil {
		return news.ModelScore{}, nil
	}

	p, err := m.clf.Classify(ctx, text)
	if err == nil {
		p, err = p.Normalized()
	}
	if err != nil {
		return news.ModelScore{Value: 0, Available: true, Failed: true}, fmt.Errorf("model inference: %w", err)
	}
	return news.ModelScore{Value: p.Polarity(), Available: true}, nil
}

// Loader loads a backend. It runs at most once per pipeline.
type Loader func(ctx context.Context) (ProbabilityClassifier, error)

// Resolve turns configuration plus a loader into a Model. Any load failure
// yields an Absent model carrying the cause.
func Resolve(ctx context.Context, enabled bool, load Loader) Model {
	if !enabled {
		return Absent(nil)
	}
	if load == nil {
		return Absent(errors.New("no model backend configured"))
	}
	clf, err := load(ctx)
	if err != nil {
		return Absent(err)
	}
	return Present(clf)
}
