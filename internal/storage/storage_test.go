package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/finsent/internal/news"
)

func sampleRecord(started time.Time) RunRecord {
	published := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	return RunRecord{
		StartedAt:      started,
		Duration:       2 * time.Second,
		ModelAvailable: true,
		Results: []news.Result{
			news.NewResult(news.Article{Headline: "Shares surge", URL: "https://e.com/a", Source: "wire", PublishedAt: &published},
				0.6, news.Components{Lexicon: 0.5, Positive: 1, Model: news.ModelScore{Value: 0.7, Available: true}}, news.DefaultThresholds),
			news.NewResult(news.Article{Headline: "Quiet day", URL: "https://e.com/b"},
				0.0, news.Components{}, news.DefaultThresholds),
		},
	}
}

func TestFileArchive_RoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.json")
	fa := NewFileArchive(path, 24)
	require.NoError(t, fa.Load())

	ctx := context.Background()
	require.NoError(t, fa.Save(ctx, sampleRecord(time.Now())))
	require.NoError(t, fa.Save(ctx, sampleRecord(time.Now())))

	reloaded := NewFileArchive(path, 24)
	require.NoError(t, reloaded.Load())

	runs := reloaded.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, int64(1), runs[0].ID)
	assert.Equal(t, int64(2), runs[1].ID)
	require.Len(t, runs[0].Results, 2)
	assert.Equal(t, news.Positive, runs[0].Results[0].Category)
	assert.Equal(t, "https://e.com/b", runs[0].Results[1].Article.URL)
	assert.Nil(t, runs[0].Results[1].Article.PublishedAt)
}

func TestFileArchive_DropsExpired(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "runs.json")
	fa := NewFileArchive(path, 1)
	ctx := context.Background()
	require.NoError(t, fa.Save(ctx, sampleRecord(time.Now().Add(-3*time.Hour))))
	require.NoError(t, fa.Save(ctx, sampleRecord(time.Now())))

	require.NoError(t, fa.Cleanup(ctx))
	assert.Len(t, fa.Runs(), 1)
}

func TestFileArchive_LoadMissingAndCorrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, NewFileArchive(filepath.Join(dir, "missing.json"), 0).Load())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{not json"), 0o600))
	assert.Error(t, NewFileArchive(bad, 0).Load())
}

func TestPostgresArchive_Save(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pa := NewPostgresArchiveFromDB(db, 48)
	rec := sampleRecord(time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sentiment_runs")).
		WithArgs(sqlmock.AnyArg(), int64(2000), true, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO sentiment_results"))
	prep.ExpectExec().
		WithArgs(int64(7), "https://e.com/a", "Shares surge", "wire", sqlmock.AnyArg(),
			sqlmock.AnyArg(), "Positive", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), false).
		WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().
		WithArgs(int64(7), "https://e.com/b", "Quiet day", "", nil,
			sqlmock.AnyArg(), "Neutral", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil, false).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, pa.Save(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_SaveRollsBackOnError(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO sentiment_runs")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewPostgresArchiveFromDB(db, 0).Save(context.Background(), sampleRecord(time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_InitSchemaAndCleanup(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	pa := NewPostgresArchiveFromDB(db, 24)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS sentiment_runs")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM sentiment_runs")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	ctx := context.Background()
	require.NoError(t, pa.InitSchema(ctx))
	require.NoError(t, pa.Cleanup(ctx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresArchive_CategoryCounts(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT r.category, COUNT(*)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"category", "count"}).
			AddRow("positive", 4).
			AddRow("negative", 1))

	counts, err := NewPostgresArchiveFromDB(db, 0).CategoryCounts(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"positive": 4, "negative": 1}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
