package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dshills/vectorquery/internal/filter"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
	// ErrCollectionNotFound is returned when no collection exists for a project
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrDimensionMismatch is returned when query vectors don't match the collection's dimension
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrIndexOutOfRange is returned when a query cannot produce any candidates
	ErrIndexOutOfRange = errors.New("query out of range")
	// ErrUnsupportedFilter is returned for filters a backend cannot evaluate
	ErrUnsupportedFilter = errors.New("unsupported filter")
	// ErrMissingDimension is returned when a collection's embedding dimension
	// was never recorded and an operation needs it
	ErrMissingDimension = errors.New("collection dimension unknown")
)

// Client is an open connection to a vector index. A Client is acquired for
// a single query invocation and must be closed on every exit path.
type Client interface {
	// Collection returns the named collection or ErrCollectionNotFound.
	Collection(ctx context.Context, name string) (Collection, error)
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	Close() error
}

// Writer creates and removes collections. Indexers and test fixtures use it;
// the query path never does.
type Writer interface {
	CreateCollection(ctx context.Context, info CollectionInfo) (Collection, error)
	DeleteCollection(ctx context.Context, name string) error
}

// Collection is a borrowed handle to one project's records.
type Collection interface {
	Info() CollectionInfo
	Count(ctx context.Context) (int, error)
	// Query returns one hit list per query embedding, nearest first.
	Query(ctx context.Context, req QueryRequest) (*QueryResult, error)
	// Get returns records by id and/or filter. Unknown ids are skipped.
	Get(ctx context.Context, req GetRequest) ([]Record, error)
	// Upsert inserts or replaces records.
	Upsert(ctx context.Context, records []Record) error
}

// CollectionInfo describes a collection and the embedding function its
// vectors were produced with.
type CollectionInfo struct {
	Name              string
	ProjectRoot       string
	EmbeddingProvider string
	EmbeddingModel    string
	Dimension         int
	CreatedAt         time.Time
}

// Metadata holds a record's metadata. Keys used by the query pipeline are
// "path", "start" and "end"; line numbers are 0-based.
type Metadata map[string]any

// Path returns the source file path.
func (m Metadata) Path() string {
	if v, ok := m[filter.FieldPath].(string); ok {
		return v
	}
	return ""
}

// Start returns the first line of a chunk, if recorded.
func (m Metadata) Start() (int, bool) {
	return m.intValue(filter.FieldStart)
}

// End returns the last line of a chunk, if recorded.
func (m Metadata) End() (int, bool) {
	return m.intValue(filter.FieldEnd)
}

func (m Metadata) intValue(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

// Record is a stored document or chunk.
type Record struct {
	ID        string
	Document  string
	Metadata  Metadata
	Embedding []float32
}

// Hit is a query match. Distance is 1 - cosine similarity; lower is closer.
type Hit struct {
	ID       string
	Distance float64
	Document string
	Metadata Metadata
}

// QueryRequest asks for the NResults nearest records to each embedding.
type QueryRequest struct {
	Embeddings [][]float32
	NResults   int
	Where      filter.Expr
}

// QueryResult holds one hit list per query embedding, in request order.
type QueryResult struct {
	Hits [][]Hit
}

// GetRequest selects records by id and/or filter. Limit <= 0 means no limit.
type GetRequest struct {
	IDs   []string
	Where filter.Expr
	Limit int
}

// CollectionName derives the collection name for a project root.
func CollectionName(projectRoot string) string {
	abs, err := filepath.Abs(projectRoot)
	if err != nil {
		abs = projectRoot
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return "vq-" + hex.EncodeToString(sum[:8])
}

// checkDimensions returns ErrDimensionMismatch if any vector has the wrong
// length. A zero dimension disables the check.
func checkDimensions(dimension int, vectors [][]float32) error {
	if dimension <= 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != dimension {
			return fmt.Errorf("%w: collection has %d, got %d", ErrDimensionMismatch, dimension, len(v))
		}
	}
	return nil
}
