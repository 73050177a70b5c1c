package searcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/chunker"
	"github.com/dshills/vectorquery/internal/embedder"
	"github.com/dshills/vectorquery/internal/filter"
	"github.com/dshills/vectorquery/internal/pathutil"
	"github.com/dshills/vectorquery/internal/reranker"
	"github.com/dshills/vectorquery/internal/storage"
	"github.com/dshills/vectorquery/pkg/types"
)

// Status is the outcome of a successful search.
type Status string

const (
	StatusOK    Status = "ok"
	StatusEmpty Status = "empty"
)

// DefaultNResult is used when a request asks for no particular count.
const DefaultNResult = 1

// Request contains parameters for one query invocation.
type Request struct {
	Query       []string
	ProjectRoot string
	NResult     int
	Include     types.IncludeSet
	// Multiplier oversamples whole-file candidates; <= 0 retrieves every record.
	Multiplier float64
	// Exclude holds glob patterns; relative patterns are anchored at ProjectRoot.
	Exclude         []string
	UseAbsolutePath bool
	// Reranker names the reranker; empty selects the default.
	Reranker string
	// Progress, when set, receives a notice once the collection is verified.
	Progress io.Writer
}

// Response contains the results of a search.
type Response struct {
	Status  Status
	Results []types.StructuredResult
	// Include is the include set actually served, after any fallback.
	Include    types.IncludeSet
	Candidates int
	Duration   time.Duration
}

// RerankerFactory creates a reranker by name.
type RerankerFactory func(name string) (reranker.Reranker, error)

// Searcher runs the query pipeline. It holds no per-query state and is safe
// for sequential reuse.
type Searcher struct {
	open      storage.Opener
	embedder  embedder.Embedder
	chunker   *chunker.StringChunker
	rerankers RerankerFactory
	logger    *zap.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithChunker sets the query segmenter.
func WithChunker(c *chunker.StringChunker) Option {
	return func(s *Searcher) { s.chunker = c }
}

// WithRerankers replaces the reranker factory.
func WithRerankers(f RerankerFactory) Option {
	return func(s *Searcher) { s.rerankers = f }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// NewSearcher creates a new Searcher instance
func NewSearcher(open storage.Opener, emb embedder.Embedder, opts ...Option) *Searcher {
	s := &Searcher{
		open:      open,
		embedder:  emb,
		chunker:   chunker.Default(),
		rerankers: reranker.New,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs one query. Failures are returned as *Error; an empty
// collection, an unsatisfiable query and fully stale hits all produce an
// empty response instead.
func (s *Searcher) Search(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()

	if s.embedder == nil {
		return nil, fail(KindEmbedding, errors.New("embedder not initialized"))
	}

	include := req.Include
	if len(include) == 0 {
		include = types.DefaultIncludeSet()
	}
	if err := include.Validate(); err != nil {
		return nil, fail(KindInvalidInclude, err)
	}
	if req.NResult <= 0 {
		req.NResult = DefaultNResult
	}

	root, err := pathutil.Expand(req.ProjectRoot, true)
	if err != nil {
		return nil, fail(KindIO, err)
	}

	client, err := s.open(ctx)
	if err != nil {
		return nil, fail(KindCollection, fmt.Errorf("opening index: %w", err))
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.logger.Warn("failed to close index", zap.Error(err))
		}
	}()

	coll, err := client.Collection(ctx, storage.CollectionName(root))
	if err != nil {
		if errors.Is(err, storage.ErrCollectionNotFound) {
			err = fmt.Errorf("no existing collection for %s: %w", root, err)
		}
		return nil, fail(KindCollection, err)
	}

	info := coll.Info()
	if err := embedder.Verify(s.embedder, info.EmbeddingProvider, info.EmbeddingModel, info.Dimension); err != nil {
		if errors.Is(err, embedder.ErrDimensionMismatch) {
			return nil, fail(KindDimensionMismatch, err)
		}
		return nil, fail(KindEmbeddingMismatch, err)
	}

	if req.Progress != nil {
		_, _ = fmt.Fprintln(req.Progress, "Starting querying...")
	}

	if include.LineRanges() {
		supported, err := SupportsLineRanges(ctx, coll)
		if errors.Is(err, storage.ErrMissingDimension) {
			return nil, fail(KindCollection, err)
		}
		if err != nil {
			return nil, fail(KindIndex, err)
		}
		if !supported {
			s.logger.Warn("collection has no line range metadata, falling back to path and document; re-index the project to query chunks",
				zap.String("collection", info.Name))
			include = types.DefaultIncludeSet()
		}
	}
	lineRanges := include.LineRanges()

	resp := &Response{Status: StatusEmpty, Results: []types.StructuredResult{}, Include: include}
	done := func() (*Response, error) {
		if len(resp.Results) > 0 {
			resp.Status = StatusOK
		}
		resp.Duration = time.Since(startTime)
		return resp, nil
	}

	total, err := coll.Count(ctx)
	if err != nil {
		return nil, fail(KindIndex, fmt.Errorf("counting records: %w", err))
	}
	if total == 0 {
		s.logger.Debug("collection is empty", zap.String("collection", info.Name))
		return done()
	}

	queries := s.chunker.Segment(req.Query)

	excluded, err := filter.ResolveExclusions(ctx, anchorPatterns(root, req.Exclude))
	if err != nil {
		return nil, fail(KindIO, fmt.Errorf("resolving exclusions: %w", err))
	}
	where := filter.BuildRetrievalFilter(filter.ExclusionValues(root, excluded), lineRanges)

	resp.Candidates = PlanQueryCount(total, req.NResult, req.Multiplier, lineRanges)
	if ce := s.logger.Check(zap.DebugLevel, "planned retrieval"); ce != nil {
		fields := []zap.Field{
			zap.Int("candidates", resp.Candidates),
			zap.Int("total", total),
			zap.Strings("include", include.Strings()),
		}
		if encoded, err := filter.Marshal(where); err != nil {
			fields = append(fields, zap.NamedError("where_error", err))
		} else {
			fields = append(fields, zap.ByteString("where", encoded))
		}
		ce.Write(fields...)
	}

	vectors, err := embedder.EmbedTexts(ctx, s.embedder, queries)
	if err != nil {
		return nil, fail(KindEmbedding, err)
	}

	result, err := coll.Query(ctx, storage.QueryRequest{
		Embeddings: vectors,
		NResults:   resp.Candidates,
		Where:      where,
	})
	switch {
	case errors.Is(err, storage.ErrIndexOutOfRange):
		s.logger.Debug("query returned no candidates", zap.Error(err))
		return done()
	case errors.Is(err, storage.ErrDimensionMismatch):
		return nil, fail(KindDimensionMismatch, err)
	case err != nil:
		return nil, fail(KindIndex, fmt.Errorf("querying collection: %w", err))
	}

	rr, err := s.rerankers(req.Reranker)
	if err != nil {
		return nil, fail(KindReranker, err)
	}
	ids, err := rr.Rerank(ctx, reranker.Input{
		Queries: queries,
		Hits:    result.Hits,
		NResult: req.NResult,
		ByChunk: lineRanges,
	})
	if err != nil {
		return nil, fail(KindReranker, err)
	}

	rec := &reconciler{
		coll:     coll,
		include:  include,
		root:     root,
		absolute: req.UseAbsolutePath,
		logger:   s.logger,
	}
	resp.Results, err = rec.reconcile(ctx, ids)
	if err != nil {
		return nil, fail(KindIndex, err)
	}

	return done()
}

// Collections lists the indexed projects.
func (s *Searcher) Collections(ctx context.Context) ([]storage.CollectionInfo, error) {
	client, err := s.open(ctx)
	if err != nil {
		return nil, fail(KindCollection, fmt.Errorf("opening index: %w", err))
	}
	defer func() {
		_ = client.Close()
	}()

	infos, err := client.ListCollections(ctx)
	if err != nil {
		return nil, fail(KindIndex, err)
	}
	return infos, nil
}

// anchorPatterns joins relative patterns onto root. Patterns starting with
// ~ or an environment variable are left for expansion.
func anchorPatterns(root string, patterns []string) []string {
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if filepath.IsAbs(p) || strings.HasPrefix(p, "~") || strings.HasPrefix(p, "$") {
			out = append(out, p)
			continue
		}
		out = append(out, filepath.Join(root, p))
	}
	return out
}

// Run executes req and writes the results to w, as a JSON array when pipe
// is set and as labelled blocks otherwise. It returns the process exit code.
func Run(ctx context.Context, s *Searcher, req Request, w io.Writer, pipe bool) int {
	if !pipe && req.Progress == nil {
		req.Progress = w
	}

	resp, err := s.Search(ctx, req)
	if err != nil {
		s.logger.Error("query failed", zap.String("kind", KindOf(err).String()), zap.Error(err))
		return 1
	}

	if pipe {
		err = WriteJSON(w, resp.Results)
	} else {
		err = WriteHuman(w, resp.Results, resp.Include)
	}
	if err != nil {
		s.logger.Error("failed to write results", zap.Error(err))
		return 1
	}
	return 0
}
