package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorquery/internal/filter"
)

const testDimension = 4

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func testInfo(name string) CollectionInfo {
	return CollectionInfo{
		Name:              name,
		ProjectRoot:       "/repo",
		EmbeddingProvider: "local",
		EmbeddingModel:    "hash",
		Dimension:         testDimension,
	}
}

// unit returns a basis vector; records built from different axes are orthogonal.
func unit(axis int) []float32 {
	v := make([]float32, testDimension)
	v[axis%testDimension] = 1
	return v
}

func fileRecord(id, path string, axis int) Record {
	return Record{
		ID:        id,
		Document:  "document " + id,
		Metadata:  Metadata{filter.FieldPath: path},
		Embedding: unit(axis),
	}
}

func chunkRecord(id, path string, start, end, axis int) Record {
	rec := fileRecord(id, path, axis)
	rec.Metadata[filter.FieldStart] = start
	rec.Metadata[filter.FieldEnd] = end
	return rec
}

// backends returns a fresh store per backend so shared behaviour is tested
// against both.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	chromemStore, err := NewChromemStorage(t.TempDir(), nil)
	require.NoError(t, err)
	return map[string]Store{
		BackendSQLite:  setupTestDB(t),
		BackendChromem: chromemStore,
	}
}

func seedCollection(t *testing.T, ctx context.Context, store Store, records ...Record) Collection {
	t.Helper()
	coll, err := store.CreateCollection(ctx, testInfo(fmt.Sprintf("coll-%d", len(records))))
	require.NoError(t, err)
	require.NoError(t, coll.Upsert(ctx, records))
	return coll
}
