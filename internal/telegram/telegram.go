package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/deusflow/finsent/internal/news"
	"github.com/deusflow/finsent/internal/report"
)

const (
	defaultBaseURL = "https://api.telegram.org"
	// maxMessageRunes is Telegram's limit for one text message.
	maxMessageRunes = 4096
)

// Client posts messages to one chat or channel.
type Client struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL uses the public Bot API.
func NewClient(token, chatID, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:      token,
		chatID:     chatID,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage sends one HTML-formatted message. It makes a single attempt.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)

	payload := map[string]any{
		"chat_id":                  c.chatID,
		"text":                     truncate(text, maxMessageRunes),
		"parse_mode":               "HTML",
		"disable_web_page_preview": true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error make JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// FormatDigest renders the run as a short HTML digest: the category split
// followed by the most positive and most negative headlines.
func FormatDigest(r *report.Report, top int) string {
	if top <= 0 {
		top = 3
	}

	var sb strings.Builder
	dist := r.Distribution()
	fmt.Fprintf(&sb, "<b>Market sentiment</b> (%d articles, mean %+.2f)\n", r.Len(), r.Mean())
	fmt.Fprintf(&sb, "🟢 %d  ⚪ %d  🔴 %d\n",
		dist[news.Positive], dist[news.Neutral], dist[news.Negative])

	writeSection(&sb, "Most positive", r.TopK(top))
	writeSection(&sb, "Most negative", r.BottomK(top))
	return sb.String()
}

func writeSection(sb *strings.Builder, title string, rows []news.Result) {
	fmt.Fprintf(sb, "\n<b>%s</b>\n", title)
	for _, res := range rows {
		headline := html.EscapeString(res.Article.Headline)
		if res.Article.URL != "" {
			headline = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(res.Article.URL), headline)
		}
		fmt.Fprintf(sb, "%+.2f %s\n", res.Compound, headline)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
