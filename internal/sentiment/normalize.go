package sentiment

import (
	"regexp"
	"strings"
)

var (
	reTags = regexp.MustCompile(`<[^>]*>`)
	reURLs = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S*`)
)

// Normalize joins headline and summary with one space, removes markup and
// URL-like tokens, lowercases and collapses whitespace. It never fails.
func Normalize(headline, summary string) string {
	text := headline + " " + summary
	text = reTags.ReplaceAllString(text, " ")
	text = reURLs.ReplaceAllString(text, " ")
	text = strings.ToLower(text)
	return strings.Join(strings.Fields(text), " ")
}
