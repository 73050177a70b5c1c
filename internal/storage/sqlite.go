package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/vectorquery/internal/filter"
)

// SQLiteStorage is a Client backed by a single SQLite database file holding
// every project's collection.
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

func (s *SQLiteStorage) beginTx(ctx context.Context) (*sqliteTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

// Collection operations

// CreateCollection registers a new collection. Returns ErrAlreadyExists if
// the name is taken.
func (s *SQLiteStorage) CreateCollection(ctx context.Context, info CollectionInfo) (Collection, error) {
	if info.Name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if _, err := s.getCollectionWithQuerier(ctx, s.querier(), info.Name); err == nil {
		return nil, fmt.Errorf("collection %s: %w", info.Name, ErrAlreadyExists)
	}

	query := `
		INSERT INTO collections (name, project_root, embedding_provider, embedding_model, dimension, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		info.Name, info.ProjectRoot, info.EmbeddingProvider, info.EmbeddingModel, info.Dimension, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}
	info.CreatedAt = now
	return &sqliteCollection{storage: s, id: id, info: info}, nil
}

// Collection returns the named collection.
func (s *SQLiteStorage) Collection(ctx context.Context, name string) (Collection, error) {
	coll, err := s.getCollectionWithQuerier(ctx, s.querier(), name)
	if err == ErrNotFound {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return coll, nil
}

// getCollectionWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getCollectionWithQuerier(ctx context.Context, q querier, name string) (*sqliteCollection, error) {
	query := `
		SELECT id, name, project_root, embedding_provider, embedding_model, dimension, created_at
		FROM collections
		WHERE name = ?
	`
	coll := &sqliteCollection{storage: s}
	var provider, model sql.NullString
	err := q.QueryRowContext(ctx, query, name).Scan(
		&coll.id, &coll.info.Name, &coll.info.ProjectRoot, &provider, &model,
		&coll.info.Dimension, &coll.info.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	coll.info.EmbeddingProvider = provider.String
	coll.info.EmbeddingModel = model.String
	return coll, nil
}

// ListCollections returns every collection ordered by name.
func (s *SQLiteStorage) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	query := `
		SELECT name, project_root, embedding_provider, embedding_model, dimension, created_at
		FROM collections
		ORDER BY name
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		var provider, model sql.NullString
		if err := rows.Scan(&info.Name, &info.ProjectRoot, &provider, &model, &info.Dimension, &info.CreatedAt); err != nil {
			return nil, err
		}
		info.EmbeddingProvider = provider.String
		info.EmbeddingModel = model.String
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// DeleteCollection removes a collection and its records.
func (s *SQLiteStorage) DeleteCollection(ctx context.Context, name string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM collections WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return nil
}

// sqliteCollection is a Collection stored in the records table.
type sqliteCollection struct {
	storage *SQLiteStorage
	id      int64
	info    CollectionInfo
}

func (c *sqliteCollection) Info() CollectionInfo {
	return c.info
}

func (c *sqliteCollection) Count(ctx context.Context) (int, error) {
	var n int
	err := c.storage.querier().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection_id = ?", c.id).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return n, nil
}

func (c *sqliteCollection) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if len(req.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no query embeddings", ErrIndexOutOfRange)
	}
	if req.NResults <= 0 {
		return nil, fmt.Errorf("%w: n_results must be positive, got %d", ErrIndexOutOfRange, req.NResults)
	}
	if err := checkDimensions(c.info.Dimension, req.Embeddings); err != nil {
		return nil, err
	}

	where, whereArgs, err := compileWhere(req.Where)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Hits: make([][]Hit, len(req.Embeddings))}
	for i, embedding := range req.Embeddings {
		hits, err := searchRecords(ctx, c.storage.querier(), c.id, embedding, req.NResults, where, whereArgs)
		if err != nil {
			return nil, err
		}
		result.Hits[i] = hits
	}
	return result, nil
}

func (c *sqliteCollection) Get(ctx context.Context, req GetRequest) ([]Record, error) {
	query := `
		SELECT r.id, r.path, r.document, r.start_line, r.end_line
		FROM records r
		WHERE r.collection_id = ?
	`
	args := []interface{}{c.id}

	if len(req.IDs) > 0 {
		query += " AND r.id IN (" + placeholders(len(req.IDs)) + ")"
		for _, id := range req.IDs {
			args = append(args, id)
		}
	}

	where, whereArgs, err := compileWhere(req.Where)
	if err != nil {
		return nil, err
	}
	if where != "" {
		query += " AND (" + where + ")"
		args = append(args, whereArgs...)
	}

	query += " ORDER BY r.id"
	if req.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, req.Limit)
	}

	rows, err := c.storage.querier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := scanRecord(rows, &rec); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (c *sqliteCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(c.info.Dimension, records); err != nil {
		return err
	}

	tx, err := c.storage.beginTx(ctx)
	if err != nil {
		return err
	}
	for i := range records {
		if err := upsertRecordWithQuerier(ctx, tx.querier(), c.id, &records[i]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit records: %w", err)
	}
	return nil
}

// upsertRecordWithQuerier is the internal implementation that uses a querier
func upsertRecordWithQuerier(ctx context.Context, q querier, collectionID int64, rec *Record) error {
	query := `
		INSERT INTO records (collection_id, id, path, document, start_line, end_line, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection_id, id) DO UPDATE SET
			path = excluded.path,
			document = excluded.document,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			vector = excluded.vector
	`
	var start, end sql.NullInt64
	if n, ok := rec.Metadata.Start(); ok {
		start = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	if n, ok := rec.Metadata.End(); ok {
		end = sql.NullInt64{Int64: int64(n), Valid: true}
	}

	_, err := q.ExecContext(ctx, query,
		collectionID, rec.ID, rec.Metadata.Path(), rec.Document, start, end, serializeVector(rec.Embedding))
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// validateRecords checks ids, paths and vector dimensions before writing.
func validateRecords(dimension int, records []Record) error {
	vectors := make([][]float32, len(records))
	for i, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return fmt.Errorf("record %d: id is required", i)
		}
		if rec.Metadata.Path() == "" {
			return fmt.Errorf("record %s: metadata %q is required", rec.ID, filter.FieldPath)
		}
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("record %s: embedding is required", rec.ID)
		}
		vectors[i] = rec.Embedding
	}
	return checkDimensions(dimension, vectors)
}

// scanRecord scans id, path, document, start_line and end_line followed by
// any extra columns.
func scanRecord(rows *sql.Rows, rec *Record, extra ...interface{}) error {
	var start, end sql.NullInt64
	dest := append([]interface{}{&rec.ID, new(string), &rec.Document, &start, &end}, extra...)
	if err := rows.Scan(dest...); err != nil {
		return err
	}

	rec.Metadata = Metadata{filter.FieldPath: *(dest[1].(*string))}
	if start.Valid {
		rec.Metadata[filter.FieldStart] = int(start.Int64)
	}
	if end.Valid {
		rec.Metadata[filter.FieldEnd] = int(end.Int64)
	}
	return nil
}
