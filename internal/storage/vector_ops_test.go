package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeVector_RoundTrip(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, float32(math.Pi)}
	blob := serializeVector(vector)
	assert.Len(t, blob, len(vector)*4)
	assert.Equal(t, vector, deserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, cosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestSortCandidates_StableOnTies(t *testing.T) {
	candidates := []candidate{
		{hit: Hit{ID: "b", Distance: 0.5}},
		{hit: Hit{ID: "a", Distance: 0.5}},
		{hit: Hit{ID: "c", Distance: 0.1}},
	}
	sortCandidates(candidates)
	assert.Equal(t, "c", candidates[0].hit.ID)
	assert.Equal(t, "a", candidates[1].hit.ID)
	assert.Equal(t, "b", candidates[2].hit.ID)
}

func TestSearchRecordsFallback_MatchesSearchRecords(t *testing.T) {
	storage := setupTestDB(t)
	ctx := context.Background()
	coll := seedCollection(t, ctx, storage,
		fileRecord("a", "/repo/a.go", 0),
		fileRecord("b", "/repo/b.go", 1),
	)
	id := coll.(*sqliteCollection).id

	fallback, err := searchRecordsFallback(ctx, storage.querier(), id, unit(1), 1, "", nil)
	require.NoError(t, err)
	require.Len(t, fallback, 1)
	assert.Equal(t, "b", fallback[0].ID)

	if VectorExtensionAvailable {
		optimized, err := searchRecordsOptimized(ctx, storage.querier(), id, unit(1), 1, "", nil)
		require.NoError(t, err)
		assert.Equal(t, hitIDs(fallback), hitIDs(optimized))
	}
}
