package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/deusflow/finsent/internal/news"
)

// Options controls text rendering.
type Options struct {
	// Top is the number of rows in each table.
	Top int
	// HeadlineWidth truncates long headlines.
	HeadlineWidth int
}

// DefaultOptions mirrors the default config.
var DefaultOptions = Options{Top: 10, HeadlineWidth: 80}

// Render writes the report for results, or NoDataMessage when there are
// none.
func Render(w io.Writer, results []news.Result, opts Options) error {
	r, err := New(results)
	if err != nil {
		_, werr := fmt.Fprintln(w, NoDataMessage)
		return werr
	}
	return Write(w, r, opts)
}

// Write renders the category distribution, the most recent articles, and the
// most positive and negative ones as plain text tables.
func Write(w io.Writer, r *Report, opts Options) error {
	if opts.Top <= 0 {
		opts.Top = DefaultOptions.Top
	}
	if opts.HeadlineWidth <= 0 {
		opts.HeadlineWidth = DefaultOptions.HeadlineWidth
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Sentiment distribution (%d articles, mean %.3f)\n", r.Len(), r.Mean())
	dist := r.Distribution()
	for _, c := range news.Categories {
		fmt.Fprintf(tw, "  %s\t%d\n", c, dist[c])
	}

	section(tw, fmt.Sprintf("Latest %d articles", opts.Top), head(r.ByRecency(), opts.Top), opts)
	section(tw, "Most positive", r.TopK(opts.Top), opts)
	section(tw, "Most negative", r.BottomK(opts.Top), opts)

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func section(w io.Writer, title string, rows []news.Result, opts Options) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, "DATE\tSCORE\tCATEGORY\tHEADLINE")
	for _, res := range rows {
		date := "-"
		if res.Article.PublishedAt != nil {
			date = res.Article.PublishedAt.UTC().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%+.3f\t%s\t%s\n", date, res.Compound, res.Category, clip(res.Article.Headline, opts.HeadlineWidth))
	}
}

func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
