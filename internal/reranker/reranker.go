// Package reranker orders raw similarity hits into the final list of result
// identifiers.
package reranker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/vectorquery/internal/storage"
)

// Reranker names accepted by New.
const (
	NameNaive   = "naive"
	NameLexical = "lexical"
)

// ErrRerank wraps every reranking failure.
var ErrRerank = errors.New("reranking failed")

// Input is the candidate pool for one query invocation.
type Input struct {
	// Queries are the embedded query chunks. Hits[i] belongs to Queries[i].
	Queries []string
	Hits    [][]storage.Hit
	// NResult bounds the number of identifiers returned.
	NResult int
	// ByChunk groups hits by record id instead of by source path.
	ByChunk bool
}

// Reranker turns an Input into identifiers ordered best first. The result
// never exceeds Input.NResult entries and contains no duplicates.
type Reranker interface {
	Rerank(ctx context.Context, in Input) ([]string, error)
	Name() string
}

// New returns the reranker registered under name. An empty name selects
// the naive reranker.
func New(name string) (Reranker, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameNaive:
		return NewNaive(), nil
	case NameLexical:
		return NewLexical(), nil
	default:
		return nil, fmt.Errorf("%w: unknown reranker %q", ErrRerank, name)
	}
}

// Names lists the available rerankers.
func Names() []string {
	return []string{NameNaive, NameLexical}
}

func validate(ctx context.Context, in Input) error {
	if ctx == nil {
		return fmt.Errorf("%w: nil context", ErrRerank)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRerank, err)
	}
	if in.NResult <= 0 {
		return fmt.Errorf("%w: result count must be positive, got %d", ErrRerank, in.NResult)
	}
	if len(in.Queries) > 0 && len(in.Hits) != len(in.Queries) {
		return fmt.Errorf("%w: %d hit lists for %d queries", ErrRerank, len(in.Hits), len(in.Queries))
	}
	return nil
}

// key is the identifier a hit is grouped under.
func key(h storage.Hit, byChunk bool) string {
	if byChunk {
		return h.ID
	}
	if p := h.Metadata.Path(); p != "" {
		return p
	}
	return h.ID
}

// scoreboard accumulates per-key scores, remembering first-seen order so
// ties resolve deterministically.
type scoreboard struct {
	order  []string
	scores map[string][]float64
}

func newScoreboard() *scoreboard {
	return &scoreboard{scores: make(map[string][]float64)}
}

func (s *scoreboard) add(k string, score float64) {
	if _, ok := s.scores[k]; !ok {
		s.order = append(s.order, k)
	}
	s.scores[k] = append(s.scores[k], score)
}

// top returns up to n keys by descending mean score.
func (s *scoreboard) top(n int) []string {
	means := make(map[string]float64, len(s.order))
	for _, k := range s.order {
		var sum float64
		for _, v := range s.scores[k] {
			sum += v
		}
		means[k] = sum / float64(len(s.scores[k]))
	}

	ranked := make([]string, len(s.order))
	copy(ranked, s.order)
	sort.SliceStable(ranked, func(i, j int) bool {
		return means[ranked[i]] > means[ranked[j]]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
