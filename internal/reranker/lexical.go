package reranker

import (
	"context"
	"strings"
)

// Weights of the combined lexical score.
const (
	similarityWeight = 0.5
	overlapWeight    = 0.5
)

// LexicalReranker blends vector similarity with query term overlap. Each
// hit scores similarityWeight*(1-distance) + overlapWeight*overlap, where
// overlap is the share of the query chunk's terms found in the hit's
// document. Keys are ranked by mean score.
type LexicalReranker struct{}

// NewLexical creates a LexicalReranker.
func NewLexical() *LexicalReranker {
	return &LexicalReranker{}
}

func (r *LexicalReranker) Name() string { return NameLexical }

func (r *LexicalReranker) Rerank(ctx context.Context, in Input) ([]string, error) {
	if err := validate(ctx, in); err != nil {
		return nil, err
	}

	board := newScoreboard()
	for i, hits := range in.Hits {
		var queryTokens []string
		if i < len(in.Queries) {
			queryTokens = tokenize(in.Queries[i])
		}

		for _, h := range hits {
			score := similarityWeight * (1 - h.Distance)
			if len(queryTokens) > 0 {
				score += overlapWeight * termOverlap(queryTokens, tokenize(h.Document))
			}
			board.add(key(h, in.ByChunk), score)
		}
	}
	return board.top(in.NResult), nil
}

// tokenize splits text into lowercase identifier-like terms longer than two
// characters, dropping stopwords.
func tokenize(text string) []string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})

	filtered := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) > 2 && !stopwords[token] {
			filtered = append(filtered, token)
		}
	}
	return filtered
}

func isAlphanumeric(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '_'
}

var stopwords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"from": true, "was": true, "are": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "can": true, "this": true, "that": true, "these": true,
	"those": true, "you": true, "she": true, "they": true, "what": true,
	"which": true, "who": true, "when": true, "where": true, "why": true,
	"how": true,
}

// termOverlap returns the fraction of distinct query terms present in doc.
func termOverlap(queryTokens, docTokens []string) float64 {
	docSet := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = struct{}{}
	}

	distinct := make(map[string]struct{}, len(queryTokens))
	matched := 0
	for _, t := range queryTokens {
		if _, seen := distinct[t]; seen {
			continue
		}
		distinct[t] = struct{}{}
		if _, ok := docSet[t]; ok {
			matched++
		}
	}
	if len(distinct) == 0 {
		return 0
	}
	return float64(matched) / float64(len(distinct))
}
