// Package config loads the finsent configuration: built-in defaults, then an
// optional YAML file, then environment variables (including .env files).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/finsent/internal/news"
	"github.com/deusflow/finsent/internal/sentiment"
)

type Config struct {
	MaxArticles int  `yaml:"max_articles" env:"MAX_ARTICLES"`
	UseModel    bool `yaml:"use_model" env:"USE_MODEL"`
	Concurrency int  `yaml:"concurrency" env:"CONCURRENCY"`

	Model ModelConfig `yaml:"model"`

	PositiveTerms         []string `yaml:"positive_terms" env:"POSITIVE_TERMS"`
	NegativeTerms         []string `yaml:"negative_terms" env:"NEGATIVE_TERMS"`
	KeywordWeight         float64  `yaml:"keyword_weight" env:"KEYWORD_WEIGHT"`
	EnsembleWeightLexicon float64  `yaml:"ensemble_weight_lexicon" env:"ENSEMBLE_WEIGHT_LEXICON"`
	EnsembleWeightModel   float64  `yaml:"ensemble_weight_model" env:"ENSEMBLE_WEIGHT_MODEL"`
	PositiveThreshold     float64  `yaml:"classify_positive_threshold" env:"CLASSIFY_POSITIVE_THRESHOLD"`
	NegativeThreshold     float64  `yaml:"classify_negative_threshold" env:"CLASSIFY_NEGATIVE_THRESHOLD"`

	FeedsPath        string        `yaml:"feeds_path" env:"FEEDS_CONFIG_PATH"`
	Feeds            []string      `yaml:"feeds"`
	FetchFullText    bool          `yaml:"fetch_full_text" env:"FETCH_FULL_TEXT"`
	FullTextMaxChars int           `yaml:"full_text_max_chars" env:"FULL_TEXT_MAX_CHARS"`
	RequestTimeout   time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`

	Report     ReportConfig     `yaml:"report"`
	Logging    LoggingConfig    `yaml:"logging"`
	Storage    StorageConfig    `yaml:"storage"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// ModelConfig selects and configures the optional model backend.
type ModelConfig struct {
	Backend           string        `yaml:"backend" env:"MODEL_BACKEND"`
	Endpoint          string        `yaml:"endpoint" env:"MODEL_ENDPOINT"`
	APIKey            string        `yaml:"api_key" env:"MODEL_API_KEY"`
	Name              string        `yaml:"name" env:"MODEL_NAME"`
	RequestsPerSecond float64       `yaml:"requests_per_second" env:"MODEL_REQUESTS_PER_SECOND"`
	MaxRequests       int           `yaml:"max_requests" env:"MAX_MODEL_REQUESTS"`
	Timeout           time.Duration `yaml:"timeout" env:"MODEL_TIMEOUT"`
}

type ReportConfig struct {
	Top           int `yaml:"top" env:"REPORT_TOP"`
	HeadlineWidth int `yaml:"headline_width" env:"REPORT_HEADLINE_WIDTH"`
}

type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
	Debug bool   `yaml:"debug" env:"DEBUG"`
}

// StorageConfig selects the run archive: "none", "file" or "postgres".
type StorageConfig struct {
	Type        string `yaml:"type" env:"STORAGE_TYPE"`
	FilePath    string `yaml:"file_path" env:"ARCHIVE_FILE_PATH"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	TTLHours    int    `yaml:"ttl_hours" env:"ARCHIVE_TTL_HOURS"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled" env:"TELEGRAM_ENABLED"`
	Token   string `yaml:"token" env:"TELEGRAM_TOKEN"`
	ChatID  string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	BaseURL string `yaml:"base_url" env:"TELEGRAM_BASE_URL"`
	Top     int    `yaml:"top" env:"TELEGRAM_TOP"`
}

type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled" env:"MONITORING_ENABLED"`
	Addr    string `yaml:"addr" env:"MONITORING_ADDR"`
}

const (
	BackendFinBERT = "finbert"
	BackendGemini  = "gemini"

	StorageNone     = "none"
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		MaxArticles: 100,
		Concurrency: 4,
		Model: ModelConfig{
			Backend:           BackendFinBERT,
			Endpoint:          "https://api-inference.huggingface.co/models/ProsusAI/finbert",
			RequestsPerSecond: 5,
			MaxRequests:       200,
			Timeout:           15 * time.Second,
		},
		PositiveTerms:         append([]string(nil), sentiment.DefaultPositiveTerms...),
		NegativeTerms:         append([]string(nil), sentiment.DefaultNegativeTerms...),
		KeywordWeight:         sentiment.DefaultWeights.KeywordPositive,
		EnsembleWeightLexicon: sentiment.DefaultWeights.Lexicon,
		EnsembleWeightModel:   sentiment.DefaultWeights.Model,
		PositiveThreshold:     news.DefaultThresholds.Positive,
		NegativeThreshold:     news.DefaultThresholds.Negative,
		FeedsPath:             "configs/feeds.yaml",
		FullTextMaxChars:      1500,
		RequestTimeout:        30 * time.Second,
		Report:                ReportConfig{Top: 10, HeadlineWidth: 80},
		Logging:               LoggingConfig{Level: "info"},
		Storage:               StorageConfig{Type: StorageNone, FilePath: "sentiment_runs.json", TTLHours: 24 * 7},
		Telegram:              TelegramConfig{Top: 3},
		Monitoring:            MonitoringConfig{Addr: ":8080"},
	}
}

// Load builds the configuration. An empty path skips the YAML file.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, fmt.Errorf("load environment files: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if cfg.Model.APIKey == "" && cfg.Model.Backend == BackendGemini {
		cfg.Model.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.Logging.Debug {
		cfg.Logging.Level = "debug"
	}

	return cfg, cfg.Validate()
}

// Weights returns the scoring weights. One keyword weight applies to both
// term sets.
func (c *Config) Weights() sentiment.Weights {
	return sentiment.Weights{
		KeywordPositive: c.KeywordWeight,
		KeywordNegative: c.KeywordWeight,
		Lexicon:         c.EnsembleWeightLexicon,
		Model:           c.EnsembleWeightModel,
	}
}

func (c *Config) Thresholds() news.Thresholds {
	return news.Thresholds{Positive: c.PositiveThreshold, Negative: c.NegativeThreshold}
}

func (c *Config) Validate() error {
	var errs []error

	if c.MaxArticles < 0 {
		errs = append(errs, errors.New("max_articles must not be negative"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, errors.New("concurrency must be at least 1"))
	}
	if err := c.Weights().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.NegativeThreshold > c.PositiveThreshold {
		errs = append(errs, fmt.Errorf("classify_negative_threshold %.3f is above classify_positive_threshold %.3f",
			c.NegativeThreshold, c.PositiveThreshold))
	}
	if c.UseModel && c.Model.Backend != BackendFinBERT && c.Model.Backend != BackendGemini {
		errs = append(errs, fmt.Errorf("model.backend must be %q or %q, got %q", BackendFinBERT, BackendGemini, c.Model.Backend))
	}
	if c.Model.RequestsPerSecond < 0 || c.Model.MaxRequests < 0 {
		errs = append(errs, errors.New("model rate limits must not be negative"))
	}

	switch c.Storage.Type {
	case "", StorageNone:
	case StorageFile:
		if c.Storage.FilePath == "" {
			errs = append(errs, errors.New("storage.file_path is required for file storage"))
		}
	case StoragePostgres:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be none, file or postgres, got %q", c.Storage.Type))
	}

	if c.Telegram.Enabled {
		if c.Telegram.Token == "" {
			errs = append(errs, errors.New("TELEGRAM_TOKEN is required when telegram is enabled"))
		}
		if c.Telegram.ChatID == "" {
			errs = append(errs, errors.New("TELEGRAM_CHAT_ID is required when telegram is enabled"))
		}
	}

	return errors.Join(errs...)
}
