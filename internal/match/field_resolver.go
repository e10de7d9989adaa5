package match

import (
	"log/slog"
	"strings"

	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// FieldResolver is the two-stage field resolver: substring containment
// first, TF-IDF cosine ranking as the explicit fallback.
type FieldResolver struct {
	columns []string
	vec     *Vectorizer
}

// NewFieldResolver fits the TF-IDF stage over one document per column,
// each built from the column name plus its aliases.
func NewFieldResolver() *FieldResolver {
	fr := &FieldResolver{}
	docs := make([]string, 0, len(AliasTable))
	for _, fa := range AliasTable {
		fr.columns = append(fr.columns, fa.Column)
		doc := strings.Join(append([]string{fa.Column}, fa.Aliases...), " ")
		docs = append(docs, textnorm.Normalize(doc))
	}
	fr.vec = NewVectorizer(docs)
	slog.Debug("FieldResolver fitted", "columns", len(fr.columns))
	return fr
}

// FieldMatch is the result of field resolution.
type FieldMatch struct {
	Column string
	Score  float64
}

// Resolve runs both stages. A substring hit returns with score 1.0; the
// TF-IDF stage returns the best column with its cosine score, which the
// caller compares against the medium/high thresholds. No match at all
// returns ok=false.
func (fr *FieldResolver) Resolve(input string) (FieldMatch, bool) {
	if col, ok := ResolveFieldSubstring(input); ok {
		return FieldMatch{Column: col, Score: 1.0}, true
	}
	return fr.ResolveTFIDF(input)
}

// ResolveTFIDF runs only the similarity stage.
func (fr *FieldResolver) ResolveTFIDF(input string) (FieldMatch, bool) {
	query := fr.vec.Transform(textnorm.Normalize(input))
	idx, score := fr.vec.Best(query)
	if idx < 0 || score <= 0 {
		return FieldMatch{}, false
	}
	slog.Debug("FieldResolver TF-IDF match", "column", fr.columns[idx], "score", score)
	return FieldMatch{Column: fr.columns[idx], Score: score}, true
}
