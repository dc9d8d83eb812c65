package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the pipeline together with a
// health snapshot of the most recent run.
type Metrics struct {
	ArticlesFetched   prometheus.Counter
	DuplicatesDropped prometheus.Counter
	SourcesFailed     *prometheus.CounterVec
	ArticlesScored    *prometheus.CounterVec
	ModelFailures     prometheus.Counter
	ModelCacheHits    prometheus.Counter
	CompoundScore     prometheus.Histogram
	RunDuration       prometheus.Histogram
	SinkErrors        *prometheus.CounterVec

	gatherer prometheus.Gatherer

	mu              sync.RWMutex
	runs            int64
	lastRunTime     time.Time
	lastRunDuration time.Duration
	lastScored      int
	modelAvailable  bool
	lastErrorTime   time.Time
	lastError       string
	healthy         bool
}

var Global = New(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)

// New registers the collectors on reg.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ArticlesFetched: f.NewCounter(prometheus.CounterOpts{
			Name: "finsent_articles_fetched_total",
			Help: "Articles accepted by the deduplicator",
		}),
		DuplicatesDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "finsent_duplicates_dropped_total",
			Help: "Articles dropped because their URL was already seen",
		}),
		SourcesFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsent_sources_failed_total",
			Help: "Feed fetches that failed",
		}, []string{"source"}),
		ArticlesScored: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsent_articles_scored_total",
			Help: "Articles scored, by category",
		}, []string{"category"}),
		ModelFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "finsent_model_failures_total",
			Help: "Per-article model inference failures",
		}),
		ModelCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "finsent_model_cache_hits_total",
			Help: "Model lookups answered from the per-run memo",
		}),
		CompoundScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "finsent_compound_score",
			Help:    "Distribution of compound sentiment scores",
			Buckets: prometheus.LinearBuckets(-1, 0.2, 11),
		}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "finsent_run_duration_seconds",
			Help:    "Wall time of a pipeline run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		SinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "finsent_sink_errors_total",
			Help: "Report sink failures",
		}, []string{"sink"}),
		gatherer: gatherer,
		healthy:  true,
	}
}

// Handler serves the registered collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordScore(category string, compound float64) {
	m.ArticlesScored.WithLabelValues(category).Inc()
	m.CompoundScore.Observe(compound)
}

func (m *Metrics) RecordRun(duration time.Duration, scored int, modelAvailable bool) {
	m.RunDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.lastRunTime = time.Now()
	m.lastRunDuration = duration
	m.lastScored = scored
	m.modelAvailable = modelAvailable
	m.healthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastError = err
	m.lastErrorTime = time.Now()
	m.healthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// GetStats returns the health snapshot served by the monitoring endpoint.
func (m *Metrics) GetStats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"runs":                 m.runs,
		"last_run_time":        m.lastRunTime.Format(time.RFC3339),
		"last_run_duration_ms": m.lastRunDuration.Milliseconds(),
		"last_scored":          m.lastScored,
		"model_available":      m.modelAvailable,
		"last_error_time":      m.lastErrorTime.Format(time.RFC3339),
		"last_error":           m.lastError,
		"is_healthy":           m.healthy,
	}
}
