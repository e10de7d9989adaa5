package match

import (
	"math"

	"github.com/RetailPipe/RetailPipe/internal/textnorm"
)

// Vectorizer is a TF-IDF vectorizer over unigrams and bigrams, fitted
// once over a normalized corpus. Query-time transforms reuse the fitted
// vocabulary; out-of-vocabulary terms contribute zero weight, which is
// expected rather than an error.
type Vectorizer struct {
	vocab   map[string]int
	idf     []float64
	docVecs [][]float64
}

// ngrams produces the unigram+bigram terms of a normalized document.
func ngrams(text string) []string {
	tokens := textnorm.Tokens(text)
	terms := make([]string, 0, len(tokens)*2)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// NewVectorizer fits a vectorizer over the corpus and stores the
// L2-normalized document vectors for similarity search.
func NewVectorizer(corpus []string) *Vectorizer {
	v := &Vectorizer{vocab: make(map[string]int)}

	termDocs := make(map[string]int)
	docTerms := make([][]string, len(corpus))
	for i, doc := range corpus {
		terms := ngrams(doc)
		docTerms[i] = terms
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if _, ok := v.vocab[t]; !ok {
				v.vocab[t] = len(v.vocab)
			}
			if !seen[t] {
				seen[t] = true
				termDocs[t]++
			}
		}
	}

	// Smoothed idf, matching the usual fit: ln((1+n)/(1+df)) + 1.
	n := float64(len(corpus))
	v.idf = make([]float64, len(v.vocab))
	for term, idx := range v.vocab {
		v.idf[idx] = math.Log((1+n)/(1+float64(termDocs[term]))) + 1
	}

	v.docVecs = make([][]float64, len(corpus))
	for i, terms := range docTerms {
		v.docVecs[i] = v.vectorize(terms)
	}
	return v
}

// vectorize builds an L2-normalized TF-IDF vector from a term list.
func (v *Vectorizer) vectorize(terms []string) []float64 {
	vec := make([]float64, len(v.vocab))
	for _, t := range terms {
		if idx, ok := v.vocab[t]; ok {
			vec[idx]++
		}
	}
	var norm float64
	for i := range vec {
		if vec[i] > 0 {
			vec[i] *= v.idf[i]
			norm += vec[i] * vec[i]
		}
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}

// Transform vectorizes a query with the fitted vocabulary.
func (v *Vectorizer) Transform(text string) []float64 {
	return v.vectorize(ngrams(text))
}

// Best returns the index of the corpus document most similar to the
// query vector, with its cosine similarity. Vectors are L2-normalized so
// cosine similarity reduces to a dot product. An empty corpus yields
// (-1, 0).
func (v *Vectorizer) Best(query []float64) (int, float64) {
	bestIdx, bestScore := -1, 0.0
	for i, doc := range v.docVecs {
		var dot float64
		for j := range doc {
			dot += doc[j] * query[j]
		}
		if bestIdx < 0 || dot > bestScore {
			bestIdx, bestScore = i, dot
		}
	}
	return bestIdx, bestScore
}

// Size returns the number of fitted documents.
func (v *Vectorizer) Size() int { return len(v.docVecs) }
