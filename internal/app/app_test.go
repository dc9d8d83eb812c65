package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/finsent/internal/config"
	"github.com/deusflow/finsent/internal/storage"
)

const feedXML = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Wire</title>
<item><title>Shares surge on record profit</title><link>https://e.com/1</link><description>Strong growth</description></item>
<item><title>Bank posts heavy loss as stocks crash</title><link>https://e.com/2</link></item>
<item><title>Shares surge on record profit</title><link>https://e.com/1</link></item>
</channel></rss>`

const emptyFeedXML = `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`

func serve(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
}

func testConfig(feeds ...string) *config.Config {
	cfg := config.Default()
	cfg.FeedsPath = ""
	cfg.Feeds = feeds
	return cfg
}

func TestRun_PrintsReportAndPublishes(t *testing.T) {
	t.Parallel()

	feed := serve(feedXML)
	defer feed.Close()

	var sent atomic.Int32
	tg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "Market sentiment")
		sent.Add(1)
	}))
	defer tg.Close()

	archivePath := filepath.Join(t.TempDir(), "runs.json")
	cfg := testConfig(feed.URL)
	cfg.Storage = config.StorageConfig{Type: config.StorageFile, FilePath: archivePath, TTLHours: 24}
	cfg.Telegram = config.TelegramConfig{Enabled: true, Token: "T", ChatID: "1", BaseURL: tg.URL, Top: 2}

	var out bytes.Buffer
	a, err := New(context.Background(), cfg, nil, nil, &out)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Scored 2 articles.")
	assert.Contains(t, out.String(), "Shares surge on record profit")
	assert.Equal(t, int32(1), sent.Load())

	fa := storage.NewFileArchive(archivePath, 24)
	require.NoError(t, fa.Load())
	runs := fa.Runs()
	require.Len(t, runs, 1)
	assert.Len(t, runs[0].Results, 2)
	assert.False(t, runs[0].ModelAvailable)
}

func TestRun_NoData(t *testing.T) {
	t.Parallel()

	feed := serve(emptyFeedXML)
	defer feed.Close()

	var out bytes.Buffer
	a, err := New(context.Background(), testConfig(feed.URL), nil, nil, &out)
	require.NoError(t, err)

	require.NoError(t, a.Run(context.Background()))
	assert.Equal(t, "No data to visualize.\n", out.String())
}

func TestRun_NoFeeds(t *testing.T) {
	t.Parallel()

	a, err := New(context.Background(), testConfig(), nil, nil, io.Discard)
	require.NoError(t, err)
	assert.Error(t, a.Run(context.Background()))
}

func TestRun_ModelUnavailableFallsBack(t *testing.T) {
	t.Parallel()

	feed := serve(feedXML)
	defer feed.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	cfg := testConfig(feed.URL)
	cfg.UseModel = true
	cfg.Model.Endpoint = down.URL

	var out bytes.Buffer
	a, err := New(context.Background(), cfg, nil, nil, &out)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))
	assert.Contains(t, out.String(), "Scored 2 articles.")
}

func TestScoreFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
articles:
  - headline: Stocks surge on profit growth
    url: u1
    published_at: 2024-05-01T10:00:00Z
  - headline: Stocks surge on profit growth
    url: u1
  - headline: Retailer warns of steep decline
    summary: Shares plunge after weak guidance
    url: u2
`), 0o600))

	var out bytes.Buffer
	a, err := New(context.Background(), testConfig(), nil, nil, &out)
	require.NoError(t, err)
	require.NoError(t, a.ScoreFile(context.Background(), path))

	text := out.String()
	assert.Contains(t, text, "Scored 2 articles.")
	assert.Contains(t, text, "2024-05-01 10:00")
	assert.True(t, strings.Index(text, "Most positive") < strings.Index(text, "Most negative"))
}

func TestLoadArticles_Errors(t *testing.T) {
	t.Parallel()

	_, err := LoadArticles(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("articles: [unclosed"), 0o600))
	_, err = LoadArticles(bad)
	assert.Error(t, err)
}

func TestNew_PostgresUnreachable(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Storage = config.StorageConfig{Type: config.StoragePostgres, DatabaseURL: "postgres://u:p@127.0.0.1:1/db?sslmode=disable&connect_timeout=1"}
	_, err := New(context.Background(), cfg, nil, nil, io.Discard)
	assert.Error(t, err)
}

func TestRun_FullTextFetchedForAcceptedOnly(t *testing.T) {
	t.Parallel()

	var pageHits atomic.Int64
	pages := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		pageHits.Add(1)
		_, _ = io.WriteString(w, `<html><body><article><p>The lender reported a sharp rise in quarterly profit.</p></article></body></html>`)
	}))
	defer pages.Close()

	var items strings.Builder
	for i := range 20 {
		fmt.Fprintf(&items, "<item><title>Headline %d</title><link>%s/%d</link></item>", i, pages.URL, i)
	}
	feed := serve(`<?xml version="1.0"?><rss version="2.0"><channel><title>Wire</title>` + items.String() + `</channel></rss>`)
	defer feed.Close()

	cfg := testConfig(feed.URL)
	cfg.MaxArticles = 3
	cfg.FetchFullText = true

	var out bytes.Buffer
	a, err := New(context.Background(), cfg, nil, nil, &out)
	require.NoError(t, err)
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "Scored 3 articles.")
	assert.Equal(t, int64(3), pageHits.Load())
}

type stubHealth struct {
	err      error
	deadline bool
}

func (s *stubHealth) Health(ctx context.Context) error {
	_, s.deadline = ctx.Deadline()
	return s.err
}

func TestCheckHealth(t *testing.T) {
	t.Parallel()

	ok := &stubHealth{}
	require.NoError(t, checkHealth(context.Background(), time.Second, ok))
	assert.True(t, ok.deadline)

	denied := errors.New("API key not valid")
	assert.ErrorIs(t, checkHealth(context.Background(), 0, &stubHealth{err: denied}), denied)
}
