// Package searcher runs a semantic query against a project's collection and
// turns the raw hits into file or line-range results.
//
// # Basic Usage
//
//	s := searcher.NewSearcher(storage.NewOpener(cfg, logger), emb,
//	    searcher.WithLogger(logger))
//
//	resp, err := s.Search(ctx, searcher.Request{
//	    Query:       []string{"open the database connection"},
//	    ProjectRoot: "/path/to/project",
//	    NResult:     5,
//	    Include:     types.IncludeSet{types.IncludePath, types.IncludeDocument},
//	    Multiplier:  2,
//	})
//
// # Pipeline
//
// Each call opens its own index client and closes it before returning. The
// steps run strictly in order:
//
//  1. Validate the include set. Chunk and document together fail before any I/O.
//  2. Resolve the collection for the project root and verify it was built
//     with the configured embedding provider, model and dimension.
//  3. If chunks were requested, probe for line-range metadata. Collections
//     without it are served as path and document results and a warning is logged.
//  4. Count records. An empty collection returns an empty response without
//     calling the embedder.
//  5. Segment the query, resolve exclusion globs and build the retrieval filter.
//  6. Plan the candidate count (see PlanQueryCount), embed and query.
//  7. Rerank the hits into identifiers.
//  8. Reconcile identifiers against the filesystem.
//
// # Reconciliation
//
// Identifiers naming an existing file become whole-file results with the
// document read from disk at query time. Otherwise, in chunk mode, the
// identifier is looked up as a chunk and the recorded line range (0-based,
// inclusive) is re-read from its source file. Anything else is stale: it is
// skipped and a warning asks for the project to be re-indexed. Paths are
// shown relative to the project root unless UseAbsolutePath is set, with the
// home directory abbreviated to ~.
//
// # Errors
//
// Fatal failures are returned as *Error with a Kind:
//
//	resp, err := s.Search(ctx, req)
//	switch searcher.KindOf(err) {
//	case searcher.KindCollection:
//	    // project has not been indexed
//	case searcher.KindEmbeddingMismatch, searcher.KindDimensionMismatch:
//	    // re-index with the current embedding settings
//	}
//
// An out-of-range query and stale records are not errors; they shrink or
// empty the result set and Response.Status reports StatusEmpty when nothing
// is left.
package searcher
