package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/deusflow/finsent/internal/news"
)

// PostgresArchive stores runs and their per-article results in PostgreSQL.
type PostgresArchive struct {
	db       *sql.DB
	ttlHours int
}

const schema = `
CREATE TABLE IF NOT EXISTS sentiment_runs (
	id SERIAL PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	duration_ms BIGINT NOT NULL,
	model_available BOOLEAN NOT NULL,
	articles INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sentiment_results (
	id SERIAL PRIMARY KEY,
	run_id INTEGER NOT NULL REFERENCES sentiment_runs(id) ON DELETE CASCADE,
	url TEXT NOT NULL,
	headline TEXT NOT NULL,
	source TEXT,
	published_at TIMESTAMP,
	compound DOUBLE PRECISION NOT NULL,
	category VARCHAR(16) NOT NULL,
	lexicon DOUBLE PRECISION NOT NULL,
	keywords_positive INTEGER NOT NULL,
	keywords_negative INTEGER NOT NULL,
	model_score DOUBLE PRECISION,
	model_failed BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_sentiment_runs_started_at ON sentiment_runs(started_at);
CREATE INDEX IF NOT EXISTS idx_sentiment_results_url ON sentiment_results(url);
`

const insertResult = `
INSERT INTO sentiment_results (run_id, url, headline, source, published_at, compound, category,
	lexicon, keywords_positive, keywords_negative, model_score, model_failed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// NewPostgresArchive connects, pings and initializes the schema.
func NewPostgresArchive(ctx context.Context, dsn string, ttlHours int) (*PostgresArchive, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pa := NewPostgresArchiveFromDB(db, ttlHours)
	if err := pa.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return pa, nil
}

// NewPostgresArchiveFromDB wraps an open database handle.
func NewPostgresArchiveFromDB(db *sql.DB, ttlHours int) *PostgresArchive {
	return &PostgresArchive{db: db, ttlHours: ttlHours}
}

// InitSchema creates the tables if they don't exist.
func (pa *PostgresArchive) InitSchema(ctx context.Context) error {
	if _, err := pa.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save writes the run and its results in one transaction.
func (pa *PostgresArchive) Save(ctx context.Context, rec RunRecord) error {
	tx, err := pa.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var runID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO sentiment_runs (started_at, duration_ms, model_available, articles) VALUES ($1, $2, $3, $4) RETURNING id`,
		rec.StartedAt, rec.Duration.Milliseconds(), rec.ModelAvailable, len(rec.Results),
	).Scan(&runID)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertResult)
	if err != nil {
		return fmt.Errorf("prepare result insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rec.Results {
		if _, err := stmt.ExecContext(ctx, resultArgs(runID, r)...); err != nil {
			return fmt.Errorf("insert result %s: %w", r.Article.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

func resultArgs(runID int64, r news.Result) []any {
	var published, modelScore any
	if r.Article.PublishedAt != nil {
		published = *r.Article.PublishedAt
	}
	if r.Components.Model.Available {
		modelScore = r.Components.Model.Value
	}
	return []any{
		runID, r.Article.URL, r.Article.Headline, r.Article.Source, published,
		r.Compound, r.Category.String(), r.Components.Lexicon,
		r.Components.Positive, r.Components.Negative, modelScore, r.Components.Model.Failed,
	}
}

// Cleanup removes runs older than the retention window.
func (pa *PostgresArchive) Cleanup(ctx context.Context) error {
	if pa.ttlHours <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(pa.ttlHours) * time.Hour)
	if _, err := pa.db.ExecContext(ctx, `DELETE FROM sentiment_runs WHERE started_at < $1`, cutoff); err != nil {
		return fmt.Errorf("failed to cleanup: %w", err)
	}
	return nil
}

// CategoryCounts returns how many results fell in each category for runs
// started after since.
func (pa *PostgresArchive) CategoryCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := pa.db.QueryContext(ctx, `
		SELECT r.category, COUNT(*)
		FROM sentiment_results r
		JOIN sentiment_runs s ON s.id = r.run_id
		WHERE s.started_at > $1
		GROUP BY r.category`, since)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		out[category] = count
	}
	return out, rows.Err()
}

// Close closes the database connection
func (pa *PostgresArchive) Close() error {
	if pa.db != nil {
		return pa.db.Close()
	}
	return nil
}
