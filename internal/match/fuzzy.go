// Package match provides the free-text resolvers: fuzzy retailer
// matching, field/alias resolution, and TF-IDF troubleshooting search.
package match

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// editDistance computes the indel edit distance between two strings
// using a single rolling row. A substitution costs 2 (delete plus
// insert), so fully disjoint equal-length strings are maximally distant
// instead of landing at the halfway mark.
func editDistance(s1, s2 string) int {
	r1, r2 := []rune(s1), []rune(s2)
	n, m := len(r1), len(r2)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	row := make([]int, m+1)
	for j := 0; j <= m; j++ {
		row[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := i
		for j := 1; j <= m; j++ {
			val := row[j] + 1
			if prev+1 < val {
				val = prev + 1
			}
			if r1[i-1] == r2[j-1] {
				if row[j-1] < val {
					val = row[j-1]
				}
			} else if row[j-1]+2 < val {
				val = row[j-1] + 2
			}
			row[j-1] = prev
			prev = val
		}
		row[m] = prev
	}
	return row[m]
}

// ratio is the plain similarity percentage between two strings: the
// shared-character proportion implied by the indel distance, 0 for
// disjoint strings and 100 for identical ones.
func ratio(s1, s2 string) int {
	l1, l2 := len([]rune(s1)), len([]rune(s2))
	if l1 == 0 && l2 == 0 {
		return 100
	}
	dist := editDistance(s1, s2)
	return int(float64(l1+l2-dist) / float64(l1+l2) * 100.0)
}

// partialRatio slides the shorter string across the longer one and keeps
// the best window score, so "acme" scores high against "acme corp".
func partialRatio(s1, s2 string) int {
	shorter, longer := s1, s2
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	rs, rl := []rune(shorter), []rune(longer)
	if len(rs) == 0 {
		return 0
	}
	best := 0
	for start := 0; start+len(rs) <= len(rl); start++ {
		score := ratio(string(rs), string(rl[start:start+len(rs)]))
		if score > best {
			best = score
		}
		if best == 100 {
			break
		}
	}
	if best == 0 {
		// Longer window never fit; fall back to the full comparison.
		best = ratio(s1, s2)
	}
	return best
}

// tokenSortRatio compares the two strings with their tokens sorted, making
// the score insensitive to word order.
func tokenSortRatio(s1, s2 string) int {
	return ratio(sortedTokens(s1), sortedTokens(s2))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// Score is the token-order-insensitive partial similarity between two
// strings on a 0-100 scale. Inputs are normalized before scoring.
func Score(a, b string) int {
	na, nb := textnorm.Normalize(a), textnorm.Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	best := tokenSortRatio(na, nb)
	if p := partialRatio(na, nb); p > best {
		best = p
	}
	// Reward inputs that contain the whole candidate as a phrase.
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		if best < 100 {
			best = maxInt(best, 90)
		}
	}
	return best
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// RetailerMatch is the result of resolving free text to a retailer name.
type RetailerMatch struct {
	Index int
	Name  string
	Score int
}

// Found reports whether the match cleared its threshold.
func (m RetailerMatch) Found() bool { return m.Index >= 0 }

// ResolveRetailer scores the input against every retailer name and
// returns the best candidate if it clears the threshold. Ties are broken
// by the first-encountered row, which preserves table insertion order.
// An empty table always yields "not found".
func ResolveRetailer(input string, threshold int, names []string) RetailerMatch {
	best := RetailerMatch{Index: -1}
	for i, name := range names {
		s := Score(input, name)
		if s > best.Score {
			best.Score = s
			best.Index = i
			best.Name = name
		}
	}
	if best.Index < 0 || best.Score < threshold {
		slog.Debug("ResolveRetailer no match above threshold", "threshold", threshold, "best_score", best.Score)
		return RetailerMatch{Index: -1, Score: best.Score}
	}
	slog.Debug("ResolveRetailer matched", "name", best.Name, "score", best.Score, "threshold", threshold)
	return best
}
