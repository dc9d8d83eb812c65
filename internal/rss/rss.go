package rss

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/finsent/internal/logger"
	"github.com/deusflow/finsent/internal/news"
	"github.com/deusflow/finsent/internal/scraper"
)

// FeedsConfig is YAML config structure
// feeds:
//   - https://...
type FeedsConfig struct {
	Feeds []string `yaml:"feeds"`
}

// LoadFeeds reads RSS feeds list from YAML file
func LoadFeeds(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feeds file: %w", err)
	}
	defer f.Close()

	var cfg FeedsConfig
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode feeds file %s: %w", path, err)
	}

	var urls []string
	for _, u := range cfg.Feeds {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	return urls, nil
}

// Summarizer fills in a summary for items whose feed entry has none.
type Summarizer interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Feed is one RSS/Atom feed exposed as a lazily fetched news.Source.
type Feed struct {
	url    string
	parser *gofeed.Parser
	log    logger.Logger
}

// FeedOption configures a Feed.
type FeedOption func(*Feed)

// WithLogger sets the feed logger.
func WithLogger(l logger.Logger) FeedOption {
	return func(f *Feed) { f.log = l }
}

// NewFeed returns a Feed for url. Nothing is fetched until Fetch.
func NewFeed(url string, opts ...FeedOption) *Feed {
	f := &Feed{url: url, parser: gofeed.NewParser(), log: logger.NewNop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Sources builds one Feed per URL, preserving order.
func Sources(urls []string, opts ...FeedOption) []news.Source {
	out := make([]news.Source, 0, len(urls))
	for _, u := range urls {
		out = append(out, NewFeed(u, opts...))
	}
	return out
}

func (f *Feed) Name() string { return f.url }

// Fetch downloads and parses the feed.
func (f *Feed) Fetch(ctx context.Context) ([]news.Article, error) {
	feed, err := f.parser.ParseURLWithContext(f.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", f.url, err)
	}

	articles := Articles(feed, f.url)

	f.log.Debug("Loaded feed",
		logger.String("feed", f.url),
		logger.Int("items", len(articles)))
	return articles, nil
}

// SummaryFiller extracts page text for articles that arrived without a
// summary. It runs on accepted articles only, so capped and duplicate items
// never cost a page download.
type SummaryFiller struct {
	summarizer Summarizer
	log        logger.Logger
}

// NewSummaryFiller returns a SummaryFiller backed by s.
func NewSummaryFiller(s Summarizer, log logger.Logger) *SummaryFiller {
	if log == nil {
		log = logger.NewNop()
	}
	return &SummaryFiller{summarizer: s, log: log}
}

// Fill updates articles in place. Extraction failures leave the article as
// it was.
func (sf *SummaryFiller) Fill(ctx context.Context, articles []news.Article) {
	filled := 0
	for i := range articles {
		if articles[i].Summary != "" || articles[i].URL == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		text, err := sf.summarizer.Extract(ctx, articles[i].URL)
		if err != nil {
			sf.log.Debug("Could not extract article text",
				logger.String("url", articles[i].URL),
				logger.Error(err))
			continue
		}
		articles[i].Summary = text
		filled++
	}
	sf.log.Debug("Filled missing summaries", logger.Int("filled", filled))
}

// Articles converts parsed feed items into articles in feed order. Items
// without a title are skipped.
func Articles(feed *gofeed.Feed, fallbackSource string) []news.Article {
	if feed == nil {
		return nil
	}
	source := strings.TrimSpace(feed.Title)
	if source == "" {
		source = fallbackSource
	}

	out := make([]news.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		headline := scraper.TextFromHTML(item.Title)
		if headline == "" {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		out = append(out, news.Article{
			Headline:    headline,
			Summary:     scraper.TextFromHTML(summary),
			URL:         strings.TrimSpace(item.Link),
			PublishedAt: published(item),
			Source:      source,
		})
	}
	return out
}

func published(item *gofeed.Item) *time.Time {
	switch {
	case item.PublishedParsed != nil:
		t := item.PublishedParsed.UTC()
		return &t
	case item.UpdatedParsed != nil:
		t := item.UpdatedParsed.UTC()
		return &t
	default:
		return nil
	}
}
