package searcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dshills/vectorquery/internal/embedder"
	"github.com/dshills/vectorquery/internal/filter"
	"github.com/dshills/vectorquery/internal/storage"
)

const (
	mockProvider  = "mock"
	mockModel     = "mock-model"
	mockDimension = 4
)

// mockEmbedder embeds every text as the same query vector and counts calls.
type mockEmbedder struct {
	mu     sync.Mutex
	calls  int
	texts  []string
	vector []float32
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{vector: []float32{1, 0, 0, 0}}
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	resp, err := m.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: []string{req.Text}})
	if err != nil {
		return nil, err
	}
	return resp.Embeddings[0], nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.texts = append(m.texts, req.Texts...)

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		vec := make([]float32, len(m.vector))
		copy(vec, m.vector)
		embeddings[i] = &embedder.Embedding{
			Vector:    vec,
			Dimension: mockDimension,
			Provider:  mockProvider,
			Model:     mockModel,
			Hash:      embedder.ComputeHash(text),
		}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: mockProvider, Model: mockModel}, nil
}

func (m *mockEmbedder) Dimension() int   { return mockDimension }
func (m *mockEmbedder) Provider() string { return mockProvider }
func (m *mockEmbedder) Model() string    { return mockModel }
func (m *mockEmbedder) Close() error     { return nil }

func (m *mockEmbedder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fixture is a project directory plus an on-disk index.
type fixture struct {
	t    *testing.T
	root string
	cfg  storage.Config
}

func newFixture(t *testing.T, backend string) *fixture {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(t.TempDir(), "index.db")
	if backend == storage.BackendChromem {
		path = filepath.Join(t.TempDir(), "chromem")
	}
	return &fixture{t: t, root: root, cfg: storage.Config{Backend: backend, Path: path}}
}

// write creates a project file and returns its absolute path.
func (f *fixture) write(rel, content string) string {
	f.t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (f *fixture) info() storage.CollectionInfo {
	return storage.CollectionInfo{
		Name:              storage.CollectionName(f.root),
		ProjectRoot:       f.root,
		EmbeddingProvider: mockProvider,
		EmbeddingModel:    mockModel,
		Dimension:         mockDimension,
	}
}

// indexWith creates the project's collection with the given info and records.
func (f *fixture) indexWith(info storage.CollectionInfo, records ...storage.Record) {
	f.t.Helper()
	ctx := context.Background()
	store, err := storage.Open(ctx, f.cfg, nil)
	require.NoError(f.t, err)
	defer func() { require.NoError(f.t, store.Close()) }()

	coll, err := store.CreateCollection(ctx, info)
	require.NoError(f.t, err)
	if len(records) > 0 {
		require.NoError(f.t, coll.Upsert(ctx, records))
	}
}

func (f *fixture) index(records ...storage.Record) {
	f.t.Helper()
	f.indexWith(f.info(), records...)
}

func (f *fixture) searcher(emb embedder.Embedder, opts ...Option) *Searcher {
	return NewSearcher(storage.NewOpener(f.cfg, nil), emb, opts...)
}

// fileRec is a whole-file record whose distance to the mock query vector
// grows with angle.
func fileRec(id, path string, vector ...float32) storage.Record {
	return storage.Record{
		ID:        id,
		Document:  "indexed " + id,
		Metadata:  storage.Metadata{filter.FieldPath: path},
		Embedding: vector,
	}
}

func chunkRec(id, path string, start, end int, vector ...float32) storage.Record {
	rec := fileRec(id, path, vector...)
	rec.Metadata[filter.FieldStart] = start
	rec.Metadata[filter.FieldEnd] = end
	return rec
}

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

var backendNames = []string{storage.BackendSQLite, storage.BackendChromem}

// stubCollection serves fixed answers without an index behind it.
type stubCollection struct {
	info   storage.CollectionInfo
	count  int
	getErr error
}

func (c *stubCollection) Info() storage.CollectionInfo           { return c.info }
func (c *stubCollection) Count(ctx context.Context) (int, error) { return c.count, nil }
func (c *stubCollection) Upsert(context.Context, []storage.Record) error {
	return nil
}

func (c *stubCollection) Query(ctx context.Context, req storage.QueryRequest) (*storage.QueryResult, error) {
	return &storage.QueryResult{Hits: make([][]storage.Hit, len(req.Embeddings))}, nil
}

func (c *stubCollection) Get(ctx context.Context, req storage.GetRequest) ([]storage.Record, error) {
	return nil, c.getErr
}

type stubClient struct {
	coll storage.Collection
}

func (c *stubClient) Collection(ctx context.Context, name string) (storage.Collection, error) {
	return c.coll, nil
}

func (c *stubClient) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	return []storage.CollectionInfo{c.coll.Info()}, nil
}

func (c *stubClient) Close() error { return nil }

func stubOpener(coll storage.Collection) storage.Opener {
	return func(ctx context.Context) (storage.Client, error) {
		return &stubClient{coll: coll}, nil
	}
}
