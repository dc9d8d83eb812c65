// Package pipeline wires deduplicated ingestion, scoring and the optional
// model into one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/finsent/internal/cache"
	"github.com/deusflow/finsent/internal/logger"
	"github.com/deusflow/finsent/internal/metrics"
	"github.com/deusflow/finsent/internal/news"
	"github.com/deusflow/finsent/internal/ratelimit"
	"github.com/deusflow/finsent/internal/sentiment"
)

const defaultConcurrency = 4

// Options configures a Pipeline.
type Options struct {
	UseModel          bool
	Loader            sentiment.Loader
	Concurrency       int
	RequestsPerSecond float64
	MaxRequests       int
	MaxArticles       int
	// Enrich, when set, runs on the deduplicated articles before scoring.
	Enrich func(ctx context.Context, articles []news.Article)
}

// Stats summarizes one run.
type Stats struct {
	SourcesRead    int
	SourcesFailed  int
	Fetched        int
	Duplicates     int
	Scored         int
	ModelAvailable bool
	ModelFailures  int
	ModelRequests  int
	CacheHits      int
	Duration       time.Duration
}

// Pipeline scores articles. It is safe to Run repeatedly; the model is
// resolved on first use and reused afterwards.
type Pipeline struct {
	scorer  *sentiment.Scorer
	opts    Options
	log     logger.Logger
	metrics *metrics.Metrics

	once  sync.Once
	model sentiment.Model
	base  sentiment.ProbabilityClassifier
}

// New creates a Pipeline. A nil metrics disables instrumentation.
func New(scorer *sentiment.Scorer, opts Options, log logger.Logger, m *metrics.Metrics) *Pipeline {
	if scorer == nil {
		scorer = sentiment.NewScorer()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{scorer: scorer, opts: opts, log: log, metrics: m}
}

// ResolveModel loads the model backend once. Any failure leaves the model
// Absent and is logged a single time.
func (p *Pipeline) ResolveModel(ctx context.Context) sentiment.Model {
	p.once.Do(func() {
		load := p.opts.Loader
		if load != nil {
			load = func(ctx context.Context) (sentiment.ProbabilityClassifier, error) {
				clf, err := p.opts.Loader(ctx)
				if err == nil {
					p.base = clf
				}
				return clf, err
			}
		}

		p.model = sentiment.Resolve(ctx, p.opts.UseModel, load)
		if p.model.Available() {
			p.log.Info("Sentiment model loaded")
			return
		}
		if p.opts.UseModel {
			p.log.Warn("Sentiment model unavailable, continuing with lexicon and keywords only",
				logger.Error(p.model.Reason()))
			return
		}
		p.log.Debug("Sentiment model disabled")
	})
	return p.model
}

// Run collects articles from sources, deduplicated and capped at
// Options.MaxArticles, and scores them.
func (p *Pipeline) Run(ctx context.Context, sources []news.Source) ([]news.Result, Stats, error) {
	start := time.Now()

	articles, cs, err := news.Collect(ctx, sources, p.opts.MaxArticles)
	if err != nil {
		return nil, Stats{}, err
	}

	for _, f := range cs.Failed {
		p.log.Warn("Source unavailable, skipping",
			logger.String("source", f.Source),
			logger.Error(f.Err))
		if p.metrics != nil {
			p.metrics.SourcesFailed.WithLabelValues(f.Source).Inc()
		}
	}
	if p.metrics != nil {
		p.metrics.ArticlesFetched.Add(float64(len(articles)))
		p.metrics.DuplicatesDropped.Add(float64(cs.Duplicates))
	}
	p.log.Info("Collected articles",
		logger.Int("articles", len(articles)),
		logger.Int("duplicates", cs.Duplicates),
		logger.Int("sources_read", cs.SourcesRead),
		logger.Int("sources_skipped", cs.SourcesSkipped),
		logger.Int("sources_failed", len(cs.Failed)))

	if p.opts.Enrich != nil && len(articles) > 0 {
		p.opts.Enrich(ctx, articles)
	}

	results, stats, err := p.score(ctx, articles, start)
	stats.SourcesRead = cs.SourcesRead
	stats.SourcesFailed = len(cs.Failed)
	stats.Fetched = len(articles)
	stats.Duplicates = cs.Duplicates
	return results, stats, err
}

// Score scores already collected articles. Input order is preserved.
func (p *Pipeline) Score(ctx context.Context, articles []news.Article) ([]news.Result, Stats, error) {
	results, stats, err := p.score(ctx, articles, time.Now())
	stats.Fetched = len(articles)
	return results, stats, err
}

func (p *Pipeline) score(ctx context.Context, articles []news.Article, start time.Time) ([]news.Result, Stats, error) {
	model := p.ResolveModel(ctx)

	var (
		memo    *cache.Memo[outcome]
		limiter *ratelimit.Limiter
	)
	if model.Available() && p.base != nil {
		memo = cache.New[outcome]()
		limiter = ratelimit.New(p.opts.RequestsPerSecond, 1, p.opts.MaxRequests)
		model = sentiment.Present(&guardedClassifier{
			base:    p.base,
			memo:    memo,
			limiter: limiter,
			granted: grantRequests(articles, p.opts.MaxRequests),
			max:     p.opts.MaxRequests,
		})
	}

	results := make([]news.Result, len(articles))
	var failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for i, a := range articles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.scorer.Score(gctx, a, model)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
					return err
				}
				failures.Add(1)
				p.log.Debug("Model inference failed, using neutral model score",
					logger.String("url", a.URL),
					logger.Error(err))
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, fmt.Errorf("score articles: %w", err)
	}

	stats := Stats{
		Scored:         len(results),
		ModelAvailable: model.Available(),
		ModelFailures:  int(failures.Load()),
		Duration:       time.Since(start),
	}
	if memo != nil {
		hits, _ := memo.Stats()
		stats.CacheHits = hits
		stats.ModelRequests, _, _ = limiter.Stats()
	}

	if p.metrics != nil {
		for _, r := range results {
			p.metrics.RecordScore(r.Category.String(), r.Compound)
		}
		p.metrics.ModelFailures.Add(float64(stats.ModelFailures))
		p.metrics.ModelCacheHits.Add(float64(stats.CacheHits))
		p.metrics.RecordRun(stats.Duration, stats.Scored, stats.ModelAvailable)
	}

	p.log.Info("Scored articles",
		logger.Int("scored", stats.Scored),
		logger.Bool("model_available", stats.ModelAvailable),
		logger.Int("model_failures", stats.ModelFailures),
		logger.Int("model_requests", stats.ModelRequests),
		logger.Int("cache_hits", stats.CacheHits),
		logger.Duration("duration", stats.Duration))

	return results, stats, nil
}

// grantRequests hands the request budget to distinct model inputs in
// article order, so which articles get a model score never depends on
// worker scheduling. A nil map means the budget is unlimited.
func grantRequests(articles []news.Article, max int) map[string]bool {
	if max <= 0 {
		return nil
	}
	granted := make(map[string]bool, max)
	for _, a := range articles {
		if len(granted) == max {
			break
		}
		granted[cache.GenerateKey(sentiment.Normalize(a.Headline, a.Summary))] = true
	}
	return granted
}

// outcome is one backend answer, failures included, so a text costs at most
// one request per run.
type outcome struct {
	probs sentiment.Probabilities
	err   error
}

// guardedClassifier memoizes results per normalized text and charges each
// real request against the run's budget and pacing. Texts outside the
// granted set are refused without touching the backend.
type guardedClassifier struct {
	base    sentiment.ProbabilityClassifier
	memo    *cache.Memo[outcome]
	limiter *ratelimit.Limiter
	granted map[string]bool
	max     int
}

func (g *guardedClassifier) Classify(ctx context.Context, text string) (sentiment.Probabilities, error) {
	key := cache.GenerateKey(text)
	if g.granted != nil && !g.granted[key] {
		return sentiment.Probabilities{}, fmt.Errorf("%w (%d/%d)", ratelimit.ErrBudgetExhausted, g.max, g.max)
	}
	out, _ := g.memo.Do(key, func() (outcome, error) {
		if err := g.limiter.Acquire(ctx); err != nil {
			return outcome{err: err}, nil
		}
		probs, err := g.base.Classify(ctx, text)
		return outcome{probs: probs, err: err}, nil
	})
	return out.probs, out.err
}
