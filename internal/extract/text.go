package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// inlineTag matches the lowercase presentational markup feeds leave in titles.
// Anything else in angle brackets is title text, e.g. "<Untitled Arc>".
var inlineTag = regexp.MustCompile(`</?(?:b|i|u|s|em|strong|span|small|big|sup|sub|mark|font|br)(?:\s[^>]*)?/?>`)

// plainText prepares a feed title for matching: inline markup is dropped,
// entities are decoded and all Unicode whitespace (including the U+00A0
// produced by &nbsp;) folds to single ASCII spaces.
func plainText(s string) string {
	s = inlineTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return collapseSpace(s)
}

// collapseSpace folds runs of whitespace into single spaces
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
