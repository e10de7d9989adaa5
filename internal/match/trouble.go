package match

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/models"
	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// TroubleMatcher answers troubleshooting questions by TF-IDF cosine
// similarity over a static question corpus.
type TroubleMatcher struct {
	entries []models.TroubleshootingEntry
	vec     *Vectorizer
}

// NewTroubleMatcher normalizes every stored question and fits the
// vectorizer once.
func NewTroubleMatcher(entries []models.TroubleshootingEntry) *TroubleMatcher {
	corpus := make([]string, len(entries))
	for i, e := range entries {
		corpus[i] = textnorm.Normalize(e.Question)
	}
	slog.Debug("TroubleMatcher fitted", "entries", len(entries))
	return &TroubleMatcher{entries: entries, vec: NewVectorizer(corpus)}
}

// Match returns the best stored answer as "question: answer" if its
// cosine similarity clears the threshold; otherwise ok=false so the
// caller can fall through to other handlers.
func (tm *TroubleMatcher) Match(input string, threshold float64) (string, bool) {
	if len(tm.entries) == 0 {
		return "", false
	}
	query := tm.vec.Transform(textnorm.Normalize(input))
	idx, score := tm.vec.Best(query)
	if idx < 0 || score < threshold {
		slog.Debug("TroubleMatcher below threshold", "score", score, "threshold", threshold)
		return "", false
	}
	e := tm.entries[idx]
	slog.Debug("TroubleMatcher matched", "question", e.Question, "score", score)
	return e.Question + ": " + e.Answer, true
}

// Topics lists the distinct stored questions, deduplicated on their
// normalized form and sorted case-insensitively.
func (tm *TroubleMatcher) Topics() []string {
	seen := make(map[string]string)
	for _, e := range tm.entries {
		q := strings.TrimSpace(e.Question)
		if q == "" {
			continue
		}
		key := textnorm.Normalize(q)
		if _, ok := seen[key]; !ok {
			seen[key] = q
		}
	}
	topics := make([]string, 0, len(seen))
	for _, q := range seen {
		topics = append(topics, q)
	}
	sort.Slice(topics, func(i, j int) bool {
		return strings.ToLower(topics[i]) < strings.ToLower(topics[j])
	})
	return topics
}

// Empty reports whether the matcher has no stored entries.
func (tm *TroubleMatcher) Empty() bool { return len(tm.entries) == 0 }
