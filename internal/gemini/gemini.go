package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/finsent/internal/sentiment"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

const maxPromptChars = 4000

var reJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

const healthCheckText = "Markets were steady today."

type Client struct {
	client   *genai.Client
	model    string
	generate func(ctx context.Context, prompt string) (string, error)
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = DefaultModel
	}
	c := &Client{client: client, model: model}
	c.generate = c.generateContent
	return c, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Classify asks the model for positive/neutral/negative probabilities of a
// financial news text.
func (c *Client) Classify(ctx context.Context, text string) (sentiment.Probabilities, error) {
	response, err := c.generate(ctx, buildPrompt(text))
	if err != nil {
		return sentiment.Probabilities{}, err
	}
	return parseResponse(response)
}

// Health sends one short classification request. Creating the client never touches the
// network, so a bad key or model name only shows up here.
func (c *Client) Health(ctx context.Context) error {
	if _, err := c.Classify(ctx, healthCheckText); err != nil {
		return fmt.Errorf("gemini health check: %w", err)
	}
	return nil
}

func (c *Client) generateContent(ctx context.Context, prompt string) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(fmt.Sprintf("%v", part))
	}
	return sb.String(), nil
}

func buildPrompt(text string) string {
	text = strings.ReplaceAll(text, "\r", "")
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) > maxPromptChars {
		text = string([]rune(text)[:maxPromptChars])
	}

	return fmt.Sprintf(`You are a financial news sentiment classifier.
Rate the sentiment of the news text below for investors.

Reply with a single JSON object and nothing else, using exactly these keys:
{"positive": <probability>, "neutral": <probability>, "negative": <probability>}
The three probabilities must be between 0 and 1 and sum to 1.

TEXT: %s
`, text)
}

type probabilitiesJSON struct {
	Positive *float64 `json:"positive"`
	Neutral  *float64 `json:"neutral"`
	Negative *float64 `json:"negative"`
}

// parseResponse extracts the JSON object even when the model wraps it in a
// code fence or adds prose around it.
func parseResponse(response string) (sentiment.Probabilities, error) {
	raw := reJSONObject.FindString(response)
	if raw == "" {
		return sentiment.Probabilities{}, fmt.Errorf("could not parse Gemini response: no JSON object in %q", truncate(response, 120))
	}

	var out probabilitiesJSON
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return sentiment.Probabilities{}, fmt.Errorf("could not parse Gemini response: %w", err)
	}
	if out.Positive == nil || out.Neutral == nil || out.Negative == nil {
		return sentiment.Probabilities{}, fmt.Errorf("could not parse Gemini response: missing required fields (positive=%t neutral=%t negative=%t)",
			out.Positive != nil, out.Neutral != nil, out.Negative != nil)
	}

	p := sentiment.Probabilities{Positive: *out.Positive, Neutral: *out.Neutral, Negative: *out.Negative}
	return p.Normalized()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
