package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/finsent/internal/config"
	"github.com/deusflow/finsent/internal/finbert"
	"github.com/deusflow/finsent/internal/gemini"
	"github.com/deusflow/finsent/internal/logger"
	"github.com/deusflow/finsent/internal/metrics"
	"github.com/deusflow/finsent/internal/news"
	"github.com/deusflow/finsent/internal/pipeline"
	"github.com/deusflow/finsent/internal/report"
	"github.com/deusflow/finsent/internal/rss"
	"github.com/deusflow/finsent/internal/scraper"
	"github.com/deusflow/finsent/internal/sentiment"
	"github.com/deusflow/finsent/internal/storage"
)

// App runs the pipeline and its report sinks for one configuration.
type App struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Metrics
	out      io.Writer
	pipeline *pipeline.Pipeline
	sinks    []Sink
	closers  []func() error
}

// New wires the application. Sinks are opened here so a misconfigured
// archive fails before any network work.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, m *metrics.Metrics, out io.Writer) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}
	if out == nil {
		out = os.Stdout
	}
	a := &App{cfg: cfg, log: log, metrics: m, out: out}

	scorer := sentiment.NewScorer()
	scorer.Keywords = sentiment.NewKeywords(cfg.PositiveTerms, cfg.NegativeTerms)
	scorer.Weights = cfg.Weights()
	scorer.Thresholds = cfg.Thresholds()

	var enrich func(context.Context, []news.Article)
	if cfg.FetchFullText {
		client := &http.Client{Timeout: cfg.RequestTimeout}
		enrich = rss.NewSummaryFiller(scraper.NewExtractor(client, cfg.FullTextMaxChars), log).Fill
	}

	a.pipeline = pipeline.New(scorer, pipeline.Options{
		UseModel:          cfg.UseModel,
		Loader:            a.modelLoader(),
		Concurrency:       cfg.Concurrency,
		RequestsPerSecond: cfg.Model.RequestsPerSecond,
		MaxRequests:       cfg.Model.MaxRequests,
		MaxArticles:       cfg.MaxArticles,
		Enrich:            enrich,
	}, log, m)

	sinks, closers, err := openSinks(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.sinks = sinks
	a.closers = append(a.closers, closers...)
	return a, nil
}

// Close releases model clients and archives.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run fetches the configured feeds, scores them, prints the report and
// publishes it to the sinks.
func (a *App) Run(ctx context.Context) error {
	started := time.Now()

	feeds, err := a.feedURLs()
	if err != nil {
		a.fail(err)
		return err
	}
	a.log.Info("Loaded feed list", logger.Int("feeds", len(feeds)))

	results, stats, err := a.pipeline.Run(ctx, rss.Sources(feeds, rss.WithLogger(a.log)))
	if err != nil {
		a.fail(err)
		return fmt.Errorf("run pipeline: %w", err)
	}
	a.log.Info("Run finished",
		logger.Int("fetched", stats.Fetched),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("sources_failed", stats.SourcesFailed))

	return a.present(ctx, results, stats, started, true)
}

// ScoreFile scores a local YAML article list without touching the network
// apart from the optional model.
func (a *App) ScoreFile(ctx context.Context, path string) error {
	started := time.Now()

	articles, err := LoadArticles(path)
	if err != nil {
		return err
	}
	articles = news.Dedupe(articles, a.cfg.MaxArticles)

	results, stats, err := a.pipeline.Score(ctx, articles)
	if err != nil {
		return fmt.Errorf("score articles: %w", err)
	}
	return a.present(ctx, results, stats, started, false)
}

func (a *App) present(ctx context.Context, results []news.Result, stats pipeline.Stats, started time.Time, publish bool) error {
	opts := report.Options{Top: a.cfg.Report.Top, HeadlineWidth: a.cfg.Report.HeadlineWidth}

	r, err := report.New(results)
	if errors.Is(err, report.ErrNoData) {
		_, werr := fmt.Fprintln(a.out, report.NoDataMessage)
		return werr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Scored %d articles.\n\n", len(results))
	if err := report.Write(a.out, r, opts); err != nil {
		return err
	}

	if !publish {
		return nil
	}
	rec := runRecord(results, stats, started)
	a.publish(ctx, rec, r)
	return nil
}

func (a *App) publish(ctx context.Context, rec storage.RunRecord, r *report.Report) {
	for _, s := range a.sinks {
		if err := s.Publish(ctx, rec, r); err != nil {
			a.log.Error("Report sink failed",
				logger.String("sink", s.Name()),
				logger.Error(err))
			if a.metrics != nil {
				a.metrics.SinkErrors.WithLabelValues(s.Name()).Inc()
			}
			continue
		}
		a.log.Info("Report published", logger.String("sink", s.Name()))
	}
}

func (a *App) fail(err error) {
	if a.metrics != nil {
		a.metrics.SetError(err.Error())
	}
}

func (a *App) feedURLs() ([]string, error) {
	urls := append([]string(nil), a.cfg.Feeds...)
	if a.cfg.FeedsPath != "" {
		fromFile, err := rss.LoadFeeds(a.cfg.FeedsPath)
		switch {
		case err == nil:
			urls = append(urls, fromFile...)
		case len(urls) > 0:
			a.log.Warn("Feeds file unreadable, using inline feeds only",
				logger.String("path", a.cfg.FeedsPath),
				logger.Error(err))
		default:
			return nil, fmt.Errorf("load feeds: %w", err)
		}
	}
	if len(urls) == 0 {
		return nil, errors.New("no feeds configured")
	}
	return urls, nil
}

// modelLoader builds the configured backend. It runs once, on first use.
func (a *App) modelLoader() sentiment.Loader {
	mc := a.cfg.Model
	return func(ctx context.Context) (sentiment.ProbabilityClassifier, error) {
		switch mc.Backend {
		case config.BackendFinBERT:
			client := finbert.NewClient(mc.Endpoint,
				finbert.WithAPIKey(mc.APIKey),
				finbert.WithHTTPClient(&http.Client{Timeout: mc.Timeout}))
			if err := checkHealth(ctx, mc.Timeout, client); err != nil {
				return nil, err
			}
			return client, nil

		case config.BackendGemini:
			client, err := gemini.NewClient(ctx, mc.APIKey, mc.Name)
			if err != nil {
				return nil, err
			}
			if err := checkHealth(ctx, mc.Timeout, client); err != nil {
				client.Close()
				return nil, err
			}
			a.closers = append(a.closers, func() error { client.Close(); return nil })
			return client, nil

		default:
			return nil, fmt.Errorf("unknown model backend %q", mc.Backend)
		}
	}
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// checkHealth checks a freshly built backend so a broken one is reported at
// load time instead of failing every article.
func checkHealth(ctx context.Context, timeout time.Duration, hc healthChecker) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return hc.Health(ctx)
}

type articleFile struct {
	Articles []news.Article `yaml:"articles"`
}

// LoadArticles reads a YAML file of the form
//
//	articles:
//	  - headline: ...
//	    summary: ...
//	    url: ...
//	    published_at: 2024-05-01T10:00:00Z
func LoadArticles(path string) ([]news.Article, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read articles file: %w", err)
	}
	var f articleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse articles file %s: %w", path, err)
	}
	return f.Articles, nil
}
