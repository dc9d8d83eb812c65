// Package storage archives scored runs so results can be compared across
// runs. Two backends exist: a JSON file and PostgreSQL.
package storage

import (
	"context"
	"time"

	"github.com/deusflow/finsent/internal/news"
)

// RunRecord is one archived pipeline run.
type RunRecord struct {
	ID             int64         `json:"id"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	ModelAvailable bool          `json:"model_available"`
	Results        []news.Result `json:"results"`
}

// Archive stores run records.
type Archive interface {
	Save(ctx context.Context, rec RunRecord) error
	Cleanup(ctx context.Context) error
	Close() error
}
