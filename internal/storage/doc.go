// Package storage provides the vector index that queries run against.
//
// An index holds one collection per project. A collection stores records:
// either whole documents or line-range chunks of a source file. Every record
// carries an embedding and metadata with at least a "path"; chunks also
// carry 0-based "start" and "end" line numbers.
//
// # Backends
//
// Two backends implement Client and Writer:
//   - SQLiteStorage: a single database file holding all collections
//     (tables collections and records). Vectors are little-endian float32
//     blobs. Filters compile to SQL. Built with modernc.org/sqlite by default,
//     or mattn/go-sqlite3 plus sqlite-vec with -tags sqlite_vec.
//   - ChromemStorage: an embedded chromem-go database persisted to a
//     directory. Non-equality filters are evaluated in process.
//
// # Basic Usage
//
//	open := storage.NewOpener(storage.Config{Backend: "sqlite", Path: "~/.vectorquery/index.db"}, logger)
//	client, err := open(ctx)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	coll, err := client.Collection(ctx, storage.CollectionName(projectRoot))
//	if errors.Is(err, storage.ErrCollectionNotFound) {
//	    // project was never indexed
//	}
//
//	res, err := coll.Query(ctx, storage.QueryRequest{
//	    Embeddings: vectors,
//	    NResults:   10,
//	    Where:      filter.BuildRetrievalFilter(excluded, false),
//	})
//
// # Errors
//
// ErrCollectionNotFound, ErrDimensionMismatch and ErrIndexOutOfRange are
// returned wrapped; test with errors.Is. ErrIndexOutOfRange means the query
// could not produce candidates (no embeddings or a non-positive result
// count) and callers treat it as an empty result.
//
// # Schema Migrations
//
// The SQLite schema is versioned with semantic versions in schema_version
// and upgraded on open by ApplyMigrations.
package storage
