package searcher

import (
	"context"
	"fmt"

	"github.com/dshills/vectorquery/internal/filter"
	"github.com/dshills/vectorquery/internal/storage"
)

// SupportsLineRanges reports whether coll holds at least one record with
// line-range metadata. Collections indexed before line ranges were recorded
// cannot serve chunk results.
func SupportsLineRanges(ctx context.Context, coll storage.Collection) (bool, error) {
	recs, err := coll.Get(ctx, storage.GetRequest{
		Where: filter.LineRangePresence(),
		Limit: 1,
	})
	if err != nil {
		return false, fmt.Errorf("probing line-range metadata: %w", err)
	}
	return len(recs) > 0, nil
}
