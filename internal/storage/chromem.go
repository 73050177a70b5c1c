package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/filter"
)

// manifestFile records collection info that chromem-go does not expose.
const manifestFile = "vectorquery-collections.json"

// errPrecomputedOnly is returned if chromem ever asks us to embed text.
var errPrecomputedOnly = errors.New("chromem backend requires precomputed embeddings")

// ChromemStorage is a Client backed by an embedded chromem-go database
// persisted to a directory.
type ChromemStorage struct {
	db     *chromem.DB
	dir    string
	logger *zap.Logger

	mu       sync.Mutex
	manifest map[string]CollectionInfo
}

// NewChromemStorage opens (or creates) a chromem-go database in dir.
func NewChromemStorage(dir string, logger *zap.Logger) (*ChromemStorage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	s := &ChromemStorage{db: db, dir: dir, logger: logger, manifest: map[string]CollectionInfo{}}
	if err := s.loadManifest(); err != nil {
		return nil, err
	}
	return s, nil
}

// Close implements Client. chromem-go persists on write, so there is nothing to flush.
func (s *ChromemStorage) Close() error {
	return nil
}

func precomputedOnly(_ context.Context, _ string) ([]float32, error) {
	return nil, errPrecomputedOnly
}

// CreateCollection implements Writer.
func (s *ChromemStorage) CreateCollection(ctx context.Context, info CollectionInfo) (Collection, error) {
	if info.Name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if existing := s.db.GetCollection(info.Name, precomputedOnly); existing != nil {
		return nil, fmt.Errorf("collection %s: %w", info.Name, ErrAlreadyExists)
	}

	coll, err := s.db.CreateCollection(info.Name, nil, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("creating collection %s: %w", info.Name, err)
	}

	info.CreatedAt = time.Now()
	s.mu.Lock()
	s.manifest[info.Name] = info
	err = s.saveManifestLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	return s.wrap(coll, info), nil
}

// Collection implements Client.
func (s *ChromemStorage) Collection(ctx context.Context, name string) (Collection, error) {
	coll := s.db.GetCollection(name, precomputedOnly)
	if coll == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return s.wrap(coll, s.info(name)), nil
}

func (s *ChromemStorage) wrap(coll *chromem.Collection, info CollectionInfo) *chromemCollection {
	return &chromemCollection{coll: coll, info: info, logger: s.logger, setDimension: s.setDimension}
}

// setDimension records the dimension of a collection created without one.
func (s *ChromemStorage) setDimension(name string, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.manifest[name]
	if !ok {
		info = CollectionInfo{Name: name}
	}
	info.Dimension = dimension
	s.manifest[name] = info
	return s.saveManifestLocked()
}

// ListCollections implements Client.
func (s *ChromemStorage) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	names := make([]string, 0)
	for name := range s.db.ListCollections() {
		names = append(names, name)
	}
	sort.Strings(names)

	infos := make([]CollectionInfo, len(names))
	for i, name := range names {
		infos[i] = s.info(name)
	}
	return infos, nil
}

// DeleteCollection implements Writer.
func (s *ChromemStorage) DeleteCollection(ctx context.Context, name string) error {
	if s.db.GetCollection(name, precomputedOnly) == nil {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.manifest, name)
	return s.saveManifestLocked()
}

func (s *ChromemStorage) info(name string) CollectionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.manifest[name]; ok {
		return info
	}
	return CollectionInfo{Name: name}
}

func (s *ChromemStorage) loadManifest() error {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading collection manifest: %w", err)
	}
	if err := json.Unmarshal(data, &s.manifest); err != nil {
		return fmt.Errorf("parsing collection manifest: %w", err)
	}
	return nil
}

func (s *ChromemStorage) saveManifestLocked() error {
	data, err := json.MarshalIndent(s.manifest, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(s.dir, manifestFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing collection manifest: %w", err)
	}
	return os.Rename(tmp, filepath.Join(s.dir, manifestFile))
}

// chromemCollection adapts a chromem-go collection. chromem only supports
// string equality in where clauses, so other filters are evaluated in
// process after an unfiltered nearest-neighbour scan.
type chromemCollection struct {
	coll         *chromem.Collection
	info         CollectionInfo
	logger       *zap.Logger
	setDimension func(name string, dimension int) error
}

func (c *chromemCollection) Info() CollectionInfo {
	return c.info
}

func (c *chromemCollection) Count(ctx context.Context) (int, error) {
	return c.coll.Count(), nil
}

func (c *chromemCollection) Query(ctx context.Context, req QueryRequest) (*QueryResult, error) {
	if len(req.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no query embeddings", ErrIndexOutOfRange)
	}
	if req.NResults <= 0 {
		return nil, fmt.Errorf("%w: n_results must be positive, got %d", ErrIndexOutOfRange, req.NResults)
	}
	if err := checkDimensions(c.info.Dimension, req.Embeddings); err != nil {
		return nil, err
	}

	total := c.coll.Count()
	result := &QueryResult{Hits: make([][]Hit, len(req.Embeddings))}
	if total == 0 {
		return result, nil
	}

	for i, embedding := range req.Embeddings {
		hits, err := c.scan(ctx, embedding, total, req.Where)
		if err != nil {
			return nil, err
		}
		if len(hits) > req.NResults {
			hits = hits[:req.NResults]
		}
		result.Hits[i] = hits
	}
	return result, nil
}

func (c *chromemCollection) Get(ctx context.Context, req GetRequest) ([]Record, error) {
	var records []Record

	if len(req.IDs) > 0 {
		for _, id := range req.IDs {
			doc, err := c.coll.GetByID(ctx, id)
			if err != nil {
				c.logger.Debug("record not found", zap.String("id", id), zap.Error(err))
				continue
			}
			rec := recordFromChromem(doc.ID, doc.Content, doc.Metadata)
			if filter.Matches(req.Where, rec.Metadata) {
				records = append(records, rec)
			}
		}
	} else {
		total := c.coll.Count()
		if total == 0 {
			return nil, nil
		}
		if c.info.Dimension <= 0 {
			return nil, fmt.Errorf("%w: collection %s has no recorded dimension to scan with", ErrMissingDimension, c.info.Name)
		}
		// Any unit vector visits every record; similarity order is irrelevant here.
		probe := make([]float32, c.info.Dimension)
		probe[0] = 1
		hits, err := c.scan(ctx, probe, total, req.Where)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			records = append(records, Record{ID: h.ID, Document: h.Document, Metadata: h.Metadata})
		}
	}

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	if req.Limit > 0 && len(records) > req.Limit {
		records = records[:req.Limit]
	}
	return records, nil
}

func (c *chromemCollection) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(c.info.Dimension, records); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(records))
	for i, rec := range records {
		meta := make(map[string]string, len(rec.Metadata))
		for k, v := range rec.Metadata {
			meta[k] = fmt.Sprint(v)
		}
		docs[i] = chromem.Document{
			ID:        rec.ID,
			Metadata:  meta,
			Embedding: rec.Embedding,
			Content:   rec.Document,
		}
	}

	// Adding an existing id replaces the stored document.
	if err := c.coll.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding records: %w", err)
	}

	if c.info.Dimension <= 0 {
		dimension := len(records[0].Embedding)
		if c.setDimension != nil {
			if err := c.setDimension(c.info.Name, dimension); err != nil {
				return err
			}
		}
		c.info.Dimension = dimension
	}
	return nil
}

// scan returns every record matching where, nearest first.
func (c *chromemCollection) scan(ctx context.Context, embedding []float32, total int, where filter.Expr) ([]Hit, error) {
	results, err := c.coll.QueryEmbedding(ctx, embedding, total, pushdown(where), nil)
	if err != nil {
		if strings.Contains(err.Error(), "same length") {
			return nil, fmt.Errorf("%w: %v", ErrDimensionMismatch, err)
		}
		if strings.Contains(err.Error(), "nResults") {
			return nil, fmt.Errorf("%w: %v", ErrIndexOutOfRange, err)
		}
		return nil, fmt.Errorf("querying collection %s: %w", c.info.Name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		rec := recordFromChromem(r.ID, r.Content, r.Metadata)
		if !filter.Matches(where, rec.Metadata) {
			continue
		}
		hits = append(hits, Hit{
			ID:       r.ID,
			Distance: 1 - float64(r.Similarity),
			Document: r.Content,
			Metadata: rec.Metadata,
		})
	}
	return hits, nil
}

// pushdown extracts the string-equality clauses chromem can evaluate itself.
func pushdown(expr filter.Expr) map[string]string {
	where := map[string]string{}
	var walk func(filter.Expr)
	walk = func(e filter.Expr) {
		switch e := e.(type) {
		case filter.Equals:
			if s, ok := e.Value.(string); ok {
				where[e.Field] = s
			}
		case filter.And:
			for _, clause := range e.Clauses {
				walk(clause)
			}
		}
	}
	if expr != nil {
		walk(expr)
	}
	if len(where) == 0 {
		return nil
	}
	return where
}

// recordFromChromem converts string metadata back to typed values. Line
// numbers are stored as decimal strings.
func recordFromChromem(id, content string, meta map[string]string) Record {
	m := make(Metadata, len(meta))
	for k, v := range meta {
		if k == filter.FieldStart || k == filter.FieldEnd {
			if n, err := strconv.Atoi(v); err == nil {
				m[k] = n
				continue
			}
		}
		m[k] = v
	}
	return Record{ID: id, Document: content, Metadata: m}
}
