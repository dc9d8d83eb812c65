// Package scraper turns HTML into plain text: feed summaries that carry
// markup, and article pages for items whose feed entry has no summary.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout   = 15 * time.Second
	minParagraphLen  = 20
	enoughParagraphs = 3
)

// paragraphSelectors are tried in order until enough paragraphs are found.
var paragraphSelectors = []string{
	"article p",
	".article p",
	".content p",
	".post-content p",
	".entry-content p",
	"main p",
	"#content p",
	".text p",
	"p",
}

// TextFromHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Plain text passes through unchanged apart from whitespace.
func TextFromHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return collapse(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return collapse(fragment)
	}
	doc.Find("script, style, noscript").Remove()
	return collapse(doc.Text())
}

// Extractor fetches article pages and extracts their lead paragraphs.
type Extractor struct {
	client   *http.Client
	maxChars int
}

// NewExtractor returns an Extractor that keeps at most maxChars characters
// (0 for no limit).
func NewExtractor(client *http.Client, maxChars int) *Extractor {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	return &Extractor{client: client, maxChars: maxChars}
}

// Extract downloads url and returns its lead paragraphs as plain text.
func (e *Extractor) Extract(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "finsent/1.0 (+https://github.com/deusflow/finsent)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error loading page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: %d", resp.StatusCode)
	}

	text, err := extractParagraphs(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", fmt.Errorf("no article text at %s", url)
	}
	return clip(text, e.maxChars), nil
}

func extractParagraphs(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("error parsing HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	var best []string
	for _, selector := range paragraphSelectors {
		var found []string
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if text := collapse(s.Text()); len(text) > minParagraphLen {
				found = append(found, text)
			}
		})
		if len(found) > len(best) {
			best = found
		}
		if len(best) >= enoughParagraphs {
			best = best[:enoughParagraphs]
			break
		}
	}
	return strings.Join(best, " "), nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)[:n]
	trimmed := string(runes)
	if idx := strings.LastIndex(trimmed, ". "); idx > n/4 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}
