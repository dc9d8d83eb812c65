package news

import (
	"encoding/json"
	"fmt"
)

// Category is the 3-way sentiment label of a compound score.
type Category int

const (
	Neutral Category = iota
	Positive
	Negative
)

// Categories lists every category in report order.
var Categories = []Category{Positive, Neutral, Negative}

func (c Category) String() string {
	switch c {
	case Positive:
		return "Positive"
	case Negative:
		return "Negative"
	default:
		return "Neutral"
	}
}

func (c Category) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Category) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "Positive":
		*c = Positive
	case "Negative":
		*c = Negative
	case "Neutral":
		*c = Neutral
	default:
		return fmt.Errorf("unknown category %q", s)
	}
	return nil
}

// Thresholds are the cut points between categories.
type Thresholds struct {
	Positive float64
	Negative float64
}

// DefaultThresholds: > 0.05 Positive, < -0.05 Negative.
var DefaultThresholds = Thresholds{Positive: 0.05, Negative: -0.05}

// Classify maps a compound score to its category. It is total: every value
// lands in exactly one category.
func Classify(compound float64, th Thresholds) Category {
	switch {
	case compound > th.Positive:
		return Positive
	case compound < th.Negative:
		return Negative
	default:
		return Neutral
	}
}
