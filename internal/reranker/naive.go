package reranker

import "context"

// NaiveReranker scores each hit by its negated distance and ranks keys by
// the mean score across all query chunks that retrieved them.
type NaiveReranker struct{}

// NewNaive creates a NaiveReranker.
func NewNaive() *NaiveReranker {
	return &NaiveReranker{}
}

func (r *NaiveReranker) Name() string { return NameNaive }

func (r *NaiveReranker) Rerank(ctx context.Context, in Input) ([]string, error) {
	if err := validate(ctx, in); err != nil {
		return nil, err
	}

	board := newScoreboard()
	for _, hits := range in.Hits {
		for _, h := range hits {
			board.add(key(h, in.ByChunk), -h.Distance)
		}
	}
	return board.top(in.NResult), nil
}
