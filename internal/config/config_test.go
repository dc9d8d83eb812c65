package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/finsent/internal/sentiment"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 100, cfg.MaxArticles)
	assert.False(t, cfg.UseModel)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 10, cfg.Report.Top)
	assert.Equal(t, sentiment.DefaultWeights, cfg.Weights())
	assert.InDelta(t, 0.05, cfg.Thresholds().Positive, 1e-12)
	assert.InDelta(t, -0.05, cfg.Thresholds().Negative, 1e-12)
	assert.Equal(t, sentiment.DefaultPositiveTerms, cfg.PositiveTerms)
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeConfig(t, `
max_articles: 25
use_model: true
keyword_weight: 0.2
positive_terms: [beat, upgrade]
model:
  backend: gemini
  max_requests: 10
storage:
  type: file
  file_path: /tmp/runs.json
`)
	t.Setenv("MAX_ARTICLES", "40")
	t.Setenv("NEGATIVE_TERMS", "miss, downgrade ,")
	t.Setenv("MODEL_TIMEOUT", "3s")
	t.Setenv("GEMINI_API_KEY", "g-key")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 40, cfg.MaxArticles)
	assert.True(t, cfg.UseModel)
	assert.Equal(t, []string{"beat", "upgrade"}, cfg.PositiveTerms)
	assert.Equal(t, []string{"miss", "downgrade"}, cfg.NegativeTerms)
	assert.InDelta(t, 0.2, cfg.Weights().KeywordNegative, 1e-12)
	assert.Equal(t, BackendGemini, cfg.Model.Backend)
	assert.Equal(t, 10, cfg.Model.MaxRequests)
	assert.Equal(t, 3*time.Second, cfg.Model.Timeout)
	assert.Equal(t, "g-key", cfg.Model.APIKey)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, StorageFile, cfg.Storage.Type)
}

func TestLoad_InvalidEnvOverride(t *testing.T) {
	t.Setenv("USE_MODEL", "yes")
	t.Setenv("KEYWORD_WEIGHT", "abc")
	t.Setenv("MODEL_TIMEOUT", "soon")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "USE_MODEL")
	assert.Contains(t, err.Error(), "KEYWORD_WEIGHT")
	assert.Contains(t, err.Error(), "MODEL_TIMEOUT")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative max", func(c *Config) { c.MaxArticles = -1 }},
		{"zero concurrency", func(c *Config) { c.Concurrency = 0 }},
		{"negative weight", func(c *Config) { c.EnsembleWeightModel = -0.4 }},
		{"inverted thresholds", func(c *Config) { c.PositiveThreshold, c.NegativeThreshold = -0.1, 0.1 }},
		{"unknown backend", func(c *Config) { c.UseModel = true; c.Model.Backend = "bert" }},
		{"postgres without url", func(c *Config) { c.Storage.Type = StoragePostgres }},
		{"unknown storage", func(c *Config) { c.Storage.Type = "s3" }},
		{"telegram without token", func(c *Config) { c.Telegram.Enabled = true; c.Telegram.ChatID = "1" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidate_UnknownBackendIgnoredWhenModelOff(t *testing.T) {
	cfg := Default()
	cfg.Model.Backend = "whatever"
	assert.NoError(t, cfg.Validate())
}
