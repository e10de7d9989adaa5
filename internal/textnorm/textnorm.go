// Package textnorm provides the single text normalization used by every
// matcher in RetailPipe. Similarity indexing and query-time normalization
// must share this implementation or similarity scores become meaningless.
package textnorm

import (
	"regexp"
	"strings"
)

var (
	reWhitespace = regexp.MustCompile(`\s+`)
	reStrip      = regexp.MustCompile(`[^\w\s'&\-.]`)
)

// Normalize lower-cases the input, collapses whitespace runs to one space,
// and removes every character except word characters, whitespace,
// apostrophe, ampersand, hyphen, and period. It is idempotent; empty or
// non-text input yields "".
func Normalize(text string) string {
	text = strings.ToLower(text)
	// Strip before collapsing: removing punctuation can merge surrounding
	// whitespace, and idempotence requires the collapse to see that.
	text = reStrip.ReplaceAllString(text, "")
	text = reWhitespace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Tokens normalizes the input and splits it on whitespace.
func Tokens(text string) []string {
	n := Normalize(text)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}
