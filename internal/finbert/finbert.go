// Package finbert is an HTTP client for a three-class financial sentiment
// model served behind a HuggingFace-style inference endpoint.
package finbert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/finsent/internal/sentiment"
)

// ErrUnavailable indicates the inference endpoint cannot be reached or is
// not serving.
var ErrUnavailable = errors.New("finbert service unavailable")

const (
	defaultTimeout  = 15 * time.Second
	maxInputRunes   = 2000
	healthCheckText = "quarterly results were in line with expectations"
)

// Client calls the inference endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// NewClient creates a client for endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

// LabelScore is one entry of the inference response.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify returns normalized class probabilities for text.
func (c *Client) Classify(ctx context.Context, text string) (sentiment.Probabilities, error) {
	if r := []rune(text); len(r) > maxInputRunes {
		text = string(r[:maxInputRunes])
	}

	body, err := json.Marshal(inferenceRequest{Inputs: text})
	if err != nil {
		return sentiment.Probabilities{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return sentiment.Probabilities{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sentiment.Probabilities{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return sentiment.Probabilities{}, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		return sentiment.Probabilities{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return sentiment.Probabilities{}, fmt.Errorf("inference returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	scores, err := decodeScores(raw)
	if err != nil {
		return sentiment.Probabilities{}, err
	}
	return toProbabilities(scores)
}

// Health sends a short request through the classify path.
func (c *Client) Health(ctx context.Context) error {
	if c.endpoint == "" {
		return fmt.Errorf("%w: no endpoint configured", ErrUnavailable)
	}
	if _, err := c.Classify(ctx, healthCheckText); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}

// decodeScores accepts both the nested [[...]] shape returned for a single
// input and the flat [...] shape some servers return.
func decodeScores(raw []byte) ([]LabelScore, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, errors.New("empty inference response")
		}
		return nested[0], nil
	}

	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode inference response: %w", err)
	}
	return flat, nil
}

func toProbabilities(scores []LabelScore) (sentiment.Probabilities, error) {
	var p sentiment.Probabilities
	seen := 0
	for _, s := range scores {
		switch strings.ToLower(strings.TrimSpace(s.Label)) {
		case "positive", "pos", "label_0":
			p.Positive = s.Score
		case "negative", "neg", "label_1":
			p.Negative = s.Score
		case "neutral", "neu", "label_2":
			p.Neutral = s.Score
		default:
			return sentiment.Probabilities{}, fmt.Errorf("unknown label %q", s.Label)
		}
		seen++
	}
	if seen == 0 {
		return sentiment.Probabilities{}, errors.New("inference response has no labels")
	}
	return p.Normalized()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
