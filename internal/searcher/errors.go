package searcher

import (
	"errors"
	"fmt"
)

// Kind classifies a failed search. The set is closed: every error returned
// by Search is an *Error carrying one of these kinds.
type Kind int

const (
	// KindInvalidInclude: the requested include set is empty or combines chunk and document.
	KindInvalidInclude Kind = iota + 1
	// KindCollection: no collection exists for the project root, or it could not be opened.
	KindCollection
	// KindEmbeddingMismatch: the collection was built with another embedding provider or model.
	KindEmbeddingMismatch
	// KindDimensionMismatch: query vectors do not fit the collection.
	KindDimensionMismatch
	// KindEmbedding: the embedding provider failed.
	KindEmbedding
	// KindIndex: the index failed to count, probe, query or fetch records.
	KindIndex
	// KindReranker: the reranker could not be created or failed.
	KindReranker
	// KindIO: local filesystem access failed.
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInclude:
		return "invalid include"
	case KindCollection:
		return "collection"
	case KindEmbeddingMismatch:
		return "embedding mismatch"
	case KindDimensionMismatch:
		return "dimension mismatch"
	case KindEmbedding:
		return "embedding"
	case KindIndex:
		return "index"
	case KindReranker:
		return "reranker"
	case KindIO:
		return "io"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a fatal search failure.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func fail(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// KindOf returns the Kind of err, or 0 if err is not a search failure.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
