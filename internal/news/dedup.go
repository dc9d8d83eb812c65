package news

import (
	"context"
	"fmt"
)

// Deduplicator accepts articles in arrival order, keeping the first
// occurrence of every URL, until max articles have been accepted.
type Deduplicator struct {
	max      int
	seen     map[string]struct{}
	accepted []Article
	dropped  int
}

// NewDeduplicator returns a Deduplicator capped at max accepted articles.
// max <= 0 disables the cap.
func NewDeduplicator(max int) *Deduplicator {
	return &Deduplicator{
		max:  max,
		seen: make(map[string]struct{}),
	}
}

// Add offers one article. It reports whether the article was accepted;
// duplicates and anything offered after the cap is reached are refused.
func (d *Deduplicator) Add(a Article) bool {
	if d.Full() {
		return false
	}
	if _, dup := d.seen[a.URL]; dup {
		d.dropped++
		return false
	}
	d.seen[a.URL] = struct{}{}
	d.accepted = append(d.accepted, a)
	return true
}

// Full reports whether the cap has been reached.
func (d *Deduplicator) Full() bool {
	return d.max > 0 && len(d.accepted) >= d.max
}

// Dropped is the number of duplicates refused so far.
func (d *Deduplicator) Dropped() int { return d.dropped }

// Len is the number of accepted articles.
func (d *Deduplicator) Len() int { return len(d.accepted) }

// Articles returns a copy of the accepted articles in acceptance order.
func (d *Deduplicator) Articles() []Article {
	out := make([]Article, len(d.accepted))
	copy(out, d.accepted)
	return out
}

// Dedupe runs a fresh Deduplicator over an in-memory list.
func Dedupe(articles []Article, max int) []Article {
	d := NewDeduplicator(max)
	for _, a := range articles {
		if d.Full() {
			break
		}
		d.Add(a)
	}
	return d.Articles()
}

// Source is one lazily fetched ingestion source (a feed, a file, ...).
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Article, error)
}

// SourceError records a source that could not be read.
type SourceError struct {
	Source string
	Err    error
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e SourceError) Unwrap() error { return e.Err }

// CollectStats describes one Collect call.
type CollectStats struct {
	SourcesRead    int
	SourcesSkipped int
	Fetched        int
	Duplicates     int
	Failed         []SourceError
}

// Collect pulls sources in order through a Deduplicator. Once max articles
// are accepted no further source is fetched. A failing source is recorded in
// the stats and skipped; only context cancellation aborts the collection.
func Collect(ctx context.Context, sources []Source, max int) ([]Article, CollectStats, error) {
	var stats CollectStats
	d := NewDeduplicator(max)

	for i, src := range sources {
		if d.Full() {
			stats.SourcesSkipped = len(sources) - i
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, stats, fmt.Errorf("collect: %w", err)
		}

		items, err := src.Fetch(ctx)
		stats.SourcesRead++
		if err != nil {
			stats.Failed = append(stats.Failed, SourceError{Source: src.Name(), Err: err})
			continue
		}

		for _, a := range items {
			if d.Full() {
				break
			}
			stats.Fetched++
			d.Add(a)
		}
	}

	stats.Duplicates = d.Dropped()
	return d.Articles(), stats, nil
}
