// Package report ranks scored articles and renders the run summary.
package report

import (
	"errors"
	"sort"

	"github.com/deusflow/finsent/internal/news"
)

// ErrNoData is returned when there is nothing to report.
var ErrNoData = errors.New("no data to report")

// NoDataMessage is printed in place of a report for an empty run.
const NoDataMessage = "No data to visualize."

// Report holds the results of one run in input order. Every view returns a
// fresh slice.
type Report struct {
	results []news.Result
}

// New returns ErrNoData for an empty result set.
func New(results []news.Result) (*Report, error) {
	if len(results) == 0 {
		return nil, ErrNoData
	}
	cp := make([]news.Result, len(results))
	copy(cp, results)
	return &Report{results: cp}, nil
}

// Len is the number of results.
func (r *Report) Len() int { return len(r.results) }

// Results returns all results in input order.
func (r *Report) Results() []news.Result {
	return r.sorted(nil)
}

// TopK returns the n highest compound scores, ties in input order.
func (r *Report) TopK(n int) []news.Result {
	return head(r.sorted(func(a, b news.Result) bool { return a.Compound > b.Compound }), n)
}

// BottomK returns the n lowest compound scores, ties in input order.
func (r *Report) BottomK(n int) []news.Result {
	return head(r.sorted(func(a, b news.Result) bool { return a.Compound < b.Compound }), n)
}

// ByRecency orders results newest first. Results without a timestamp go
// last in input order.
func (r *Report) ByRecency() []news.Result {
	return r.sorted(func(a, b news.Result) bool {
		ta, tb := a.Article.PublishedAt, b.Article.PublishedAt
		switch {
		case ta == nil:
			return false
		case tb == nil:
			return true
		default:
			return ta.After(*tb)
		}
	})
}

// Distribution counts results per category. Every category is present.
func (r *Report) Distribution() map[news.Category]int {
	out := make(map[news.Category]int, len(news.Categories))
	for _, c := range news.Categories {
		out[c] = 0
	}
	for _, res := range r.results {
		out[res.Category]++
	}
	return out
}

// Mean is the average compound score.
func (r *Report) Mean() float64 {
	var sum float64
	for _, res := range r.results {
		sum += res.Compound
	}
	return sum / float64(len(r.results))
}

func (r *Report) sorted(less func(a, b news.Result) bool) []news.Result {
	out := make([]news.Result, len(r.results))
	copy(out, r.results)
	if less != nil {
		sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	}
	return out
}

func head(rs []news.Result, n int) []news.Result {
	if n <= 0 {
		return []news.Result{}
	}
	if n < len(rs) {
		return rs[:n:n]
	}
	return rs
}
