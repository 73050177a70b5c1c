package searcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorquery/internal/reranker"
	"github.com/dshills/vectorquery/internal/storage"
	"github.com/dshills/vectorquery/pkg/types"
)

var (
	near = []float32{1, 0, 0, 0}
	mid  = []float32{0.8, 0.6, 0, 0}
	far  = []float32{0, 1, 0, 0}
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestSearch_SingleFile(t *testing.T) {
	for _, backend := range backendNames {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)
			x := f.write("x.py", "hello")
			f.index(fileRec("x-0", x, near...))

			resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
				Query:       []string{"greeting"},
				ProjectRoot: f.root,
				NResult:     1,
				Include:     types.IncludeSet{types.IncludePath, types.IncludeDocument},
			})
			require.NoError(t, err)
			assert.Equal(t, StatusOK, resp.Status)

			var buf bytes.Buffer
			require.NoError(t, WriteJSON(&buf, resp.Results))
			assert.JSONEq(t, `[{"path": "x.py", "document": "hello"}]`, buf.String())
		})
	}
}

func TestSearch_EmptyCollectionSkipsEmbedding(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	f.index()
	emb := newMockEmbedder()

	resp, err := f.searcher(emb).Search(context.Background(), Request{
		Query:       []string{"anything"},
		ProjectRoot: f.root,
		NResult:     3,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, resp.Status)
	assert.Empty(t, resp.Results)
	assert.Zero(t, emb.callCount())
}

func TestSearch_ChunkWithDocumentFailsBeforeIO(t *testing.T) {
	opened := 0
	open := func(ctx context.Context) (storage.Client, error) {
		opened++
		return nil, errors.New("should not open")
	}
	emb := newMockEmbedder()
	s := NewSearcher(open, emb)

	_, err := s.Search(context.Background(), Request{
		Query:   []string{"q"},
		Include: types.IncludeSet{types.IncludeChunk, types.IncludeDocument},
	})
	require.Error(t, err)
	assert.Equal(t, KindInvalidInclude, KindOf(err))
	assert.ErrorIs(t, err, types.ErrIncompatibleInclude)
	assert.Zero(t, opened)
	assert.Zero(t, emb.callCount())
}

func TestSearch_CollectionErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing collection", func(t *testing.T) {
		f := newFixture(t, storage.BackendSQLite)
		_, err := f.searcher(newMockEmbedder()).Search(ctx, Request{Query: []string{"q"}, ProjectRoot: f.root})
		assert.Equal(t, KindCollection, KindOf(err))
		assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
	})

	t.Run("different model", func(t *testing.T) {
		f := newFixture(t, storage.BackendSQLite)
		info := f.info()
		info.EmbeddingModel = "other-model"
		f.indexWith(info)

		_, err := f.searcher(newMockEmbedder()).Search(ctx, Request{Query: []string{"q"}, ProjectRoot: f.root})
		assert.Equal(t, KindEmbeddingMismatch, KindOf(err))
	})

	t.Run("different dimension", func(t *testing.T) {
		f := newFixture(t, storage.BackendSQLite)
		info := f.info()
		info.Dimension = 8
		f.indexWith(info)

		_, err := f.searcher(newMockEmbedder()).Search(ctx, Request{Query: []string{"q"}, ProjectRoot: f.root})
		assert.Equal(t, KindDimensionMismatch, KindOf(err))
	})

	t.Run("unrecorded dimension", func(t *testing.T) {
		coll := &stubCollection{
			info:   storage.CollectionInfo{Name: "proj", EmbeddingProvider: mockProvider, EmbeddingModel: mockModel},
			count:  1,
			getErr: fmt.Errorf("scanning: %w", storage.ErrMissingDimension),
		}
		s := NewSearcher(stubOpener(coll), newMockEmbedder())

		_, err := s.Search(ctx, Request{
			Query:       []string{"q"},
			ProjectRoot: t.TempDir(),
			Include:     types.IncludeSet{types.IncludeChunk},
		})
		assert.Equal(t, KindCollection, KindOf(err))
		assert.ErrorIs(t, err, storage.ErrMissingDimension)
	})
}

func TestSearch_CandidateCount(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	var records []storage.Record
	for _, name := range []string{"a.go", "b.go", "c.go", "d.go", "e.go"} {
		records = append(records, chunkRec(name+"#0", f.write(name, "package x\n"), 0, 0, mid...))
	}
	f.index(records...)
	s := f.searcher(newMockEmbedder())

	tests := []struct {
		name       string
		include    types.IncludeSet
		multiplier float64
		want       int
	}{
		{name: "oversampled", multiplier: 2, want: 4},
		{name: "capped at total", multiplier: 10, want: 5},
		{name: "no multiplier takes all", multiplier: 0, want: 5},
		{name: "chunk mode is exact", include: types.IncludeSet{types.IncludeChunk}, multiplier: 10, want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := s.Search(context.Background(), Request{
				Query:       []string{"package"},
				ProjectRoot: f.root,
				NResult:     2,
				Include:     tt.include,
				Multiplier:  tt.multiplier,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Candidates)
			assert.Len(t, resp.Results, 2)
		})
	}
}

func TestSearch_SmallMultiplierStillRetrieves(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	a := f.write("a.go", "package a")
	f.index(fileRec("a-0", a, near...), fileRec("b-0", f.write("b.go", "package b"), far...))

	resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
		Query:       []string{"package"},
		ProjectRoot: f.root,
		NResult:     1,
		Multiplier:  0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Candidates)
	assert.Equal(t, StatusOK, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.go", *resp.Results[0].Path)
}

func TestSearch_ChunkLineRange(t *testing.T) {
	for _, backend := range backendNames {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)
			var content string
			for i := 0; i < 10; i++ {
				content += "filler\n"
			}
			content += "a\nb\nc\ntail\n"
			src := f.write("pkg/src.py", content)
			f.index(
				chunkRec("chunk-1", src, 10, 12, near...),
				chunkRec("chunk-2", src, 0, 1, far...),
			)

			resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
				Query:       []string{"letters"},
				ProjectRoot: f.root,
				NResult:     1,
				Include:     types.IncludeSet{types.IncludePath, types.IncludeChunk},
			})
			require.NoError(t, err)
			require.Len(t, resp.Results, 1)

			got := resp.Results[0]
			assert.Equal(t, filepath.Join("pkg", "src.py"), *got.Path)
			assert.Equal(t, "a\nb\nc\n", *got.Chunk)
			assert.Equal(t, "chunk-1", *got.ChunkID)
			assert.Equal(t, 10, *got.StartLine)
			assert.Equal(t, 12, *got.EndLine)
			assert.Nil(t, got.Document)
		})
	}
}

func TestSearch_ChunkOnlyDropsWholeFileHits(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	a := f.write("a.go", "package a\n")
	b := f.write("b.go", "package b\n")
	// The first id names a file on disk, so it reconciles as a whole-file
	// hit that carries none of the requested fields.
	f.index(chunkRec(a, a, 0, 0, near...), chunkRec("b.go#0", b, 0, 0, mid...))

	logger, logs := observedLogger()
	resp, err := f.searcher(newMockEmbedder(), WithLogger(logger)).Search(context.Background(), Request{
		Query:       []string{"package"},
		ProjectRoot: f.root,
		NResult:     2,
		Include:     types.IncludeSet{types.IncludeChunk},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "b.go#0", *resp.Results[0].ChunkID)
	assert.Equal(t, 1, logs.FilterMessage("result has nothing to report, skipping").Len())
}

func TestSearch_ChunkFallsBackWithoutLineRanges(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	a := f.write("a.go", "package a")
	f.index(fileRec("a-0", a, near...))

	logger, logs := observedLogger()
	resp, err := f.searcher(newMockEmbedder(), WithLogger(logger)).Search(context.Background(), Request{
		Query:       []string{"package"},
		ProjectRoot: f.root,
		NResult:     1,
		Include:     types.IncludeSet{types.IncludeChunk},
	})
	require.NoError(t, err)

	assert.Equal(t, types.IncludeSet{types.IncludePath, types.IncludeDocument}, resp.Include)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.go", *resp.Results[0].Path)
	assert.Equal(t, "package a", *resp.Results[0].Document)
	assert.Equal(t, 1, logs.FilterMessageSnippet("no line range metadata").Len())
}

func TestSearch_DeletedFileIsSkipped(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	a := f.write("a.go", "package a")
	gone := f.write("gone.go", "package gone")
	f.index(fileRec("gone-0", gone, near...), fileRec("a-0", a, mid...))
	require.NoError(t, os.Remove(gone))

	logger, logs := observedLogger()
	resp, err := f.searcher(newMockEmbedder(), WithLogger(logger)).Search(context.Background(), Request{
		Query:       []string{"package"},
		ProjectRoot: f.root,
		NResult:     2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a.go", *resp.Results[0].Path)
	assert.Equal(t, 1, logs.FilterMessageSnippet("no longer a valid file").Len())
}

func TestSearch_StaleChunkIsSkipped(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	keep := f.write("keep.go", "one\ntwo\n")
	gone := f.write("gone.go", "one\ntwo\n")
	f.index(chunkRec("c-gone", gone, 0, 1, near...), chunkRec("c-keep", keep, 1, 1, mid...))
	require.NoError(t, os.Remove(gone))

	logger, logs := observedLogger()
	resp, err := f.searcher(newMockEmbedder(), WithLogger(logger)).Search(context.Background(), Request{
		Query:       []string{"two"},
		ProjectRoot: f.root,
		NResult:     2,
		Include:     types.IncludeSet{types.IncludeChunk},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "two\n", *resp.Results[0].Chunk)
	assert.Nil(t, resp.Results[0].Path)
	assert.Equal(t, 1, logs.FilterMessageSnippet("no longer readable").Len())
}

func TestSearch_Exclusions(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	a := f.write("a.go", "package a")
	b := f.write("sub/b.go", "package b")
	c := f.write("c.go", "package c")
	f.index(fileRec("a-0", a, near...), fileRec("b-0", b, mid...), fileRec("c-0", c, far...))

	resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
		Query:           []string{"package"},
		ProjectRoot:     f.root,
		NResult:         3,
		Exclude:         []string{"a.go", "sub/**/*.go", "missing.go"},
		UseAbsolutePath: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, c, *resp.Results[0].Path)
}

func TestSearch_ExclusionsMatchRelativePaths(t *testing.T) {
	for _, backend := range backendNames {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)
			f.write("a.go", "package a")
			c := f.write("c.go", "package c")
			f.index(fileRec("a-0", "a.go", near...), fileRec("c-0", c, far...))

			resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
				Query:       []string{"package"},
				ProjectRoot: f.root,
				NResult:     2,
				Exclude:     []string{"a.go"},
			})
			require.NoError(t, err)
			require.Len(t, resp.Results, 1)
			assert.Equal(t, "c.go", *resp.Results[0].Path)
		})
	}
}

func TestSearch_ChunkExclusions(t *testing.T) {
	for _, backend := range backendNames {
		t.Run(backend, func(t *testing.T) {
			f := newFixture(t, backend)
			a := f.write("a.go", "package a\nfunc A() {}\n")
			b := f.write("b.go", "package b\nfunc B() {}\n")
			f.index(
				chunkRec("a.go#0", a, 0, 1, near...),
				chunkRec("b.go#0", b, 1, 1, mid...),
				fileRec("b-file", b, near...),
			)

			resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
				Query:       []string{"func"},
				ProjectRoot: f.root,
				NResult:     3,
				Include:     types.IncludeSet{types.IncludeChunk, types.IncludePath},
				Exclude:     []string{"a.go"},
			})
			require.NoError(t, err)
			require.Len(t, resp.Results, 1)
			got := resp.Results[0]
			assert.Equal(t, "b.go", *got.Path)
			assert.Equal(t, "b.go#0", *got.ChunkID)
			assert.Equal(t, "func B() {}\n", *got.Chunk)
		})
	}
}

func TestSearch_Idempotent(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	a := f.write("a.go", "package a")
	b := f.write("b.go", "package b")
	f.index(fileRec("a-0", a, mid...), fileRec("b-0", b, near...))
	s := f.searcher(newMockEmbedder())

	req := Request{Query: []string{"package"}, ProjectRoot: f.root, NResult: 2}
	first, err := s.Search(context.Background(), req)
	require.NoError(t, err)
	second, err := s.Search(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	require.Len(t, first.Results, 2)
	assert.Equal(t, "b.go", *first.Results[0].Path)
}

func TestSearch_HomeIsAbbreviated(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	x := f.write("x.py", "hello")
	f.index(fileRec("x-0", x, near...))
	t.Setenv("HOME", f.root)

	resp, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
		Query:           []string{"hello"},
		ProjectRoot:     f.root,
		Include:         types.IncludeSet{types.IncludePath},
		UseAbsolutePath: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, filepath.Join("~", "x.py"), *resp.Results[0].Path)
	assert.Nil(t, resp.Results[0].Document)
}

type failingReranker struct{}

func (failingReranker) Rerank(ctx context.Context, in reranker.Input) ([]string, error) {
	return nil, reranker.ErrRerank
}

func (failingReranker) Name() string { return "failing" }

func TestSearch_RerankerFailure(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	f.index(fileRec("a-0", f.write("a.go", "package a"), near...))

	t.Run("rerank error", func(t *testing.T) {
		s := f.searcher(newMockEmbedder(), WithRerankers(func(string) (reranker.Reranker, error) {
			return failingReranker{}, nil
		}))
		_, err := s.Search(context.Background(), Request{Query: []string{"q"}, ProjectRoot: f.root})
		assert.Equal(t, KindReranker, KindOf(err))
		assert.ErrorIs(t, err, reranker.ErrRerank)
	})

	t.Run("unknown reranker", func(t *testing.T) {
		_, err := f.searcher(newMockEmbedder()).Search(context.Background(), Request{
			Query:       []string{"q"},
			ProjectRoot: f.root,
			Reranker:    "cross-encoder",
		})
		assert.Equal(t, KindReranker, KindOf(err))
	})
}

func TestRun(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	f.index(fileRec("x-0", f.write("x.py", "hello"), near...))
	s := f.searcher(newMockEmbedder())
	req := Request{Query: []string{"hello"}, ProjectRoot: f.root}

	t.Run("pipe", func(t *testing.T) {
		var out bytes.Buffer
		assert.Equal(t, 0, Run(context.Background(), s, req, &out, true))
		assert.JSONEq(t, `[{"path":"x.py","document":"hello"}]`, out.String())
	})

	t.Run("human", func(t *testing.T) {
		var out bytes.Buffer
		assert.Equal(t, 0, Run(context.Background(), s, req, &out, false))
		assert.Equal(t, "Starting querying...\nPath: x.py\nDocument:\nhello\n", out.String())
	})

	t.Run("failure", func(t *testing.T) {
		var out bytes.Buffer
		bad := req
		bad.Include = types.IncludeSet{types.IncludeChunk, types.IncludeDocument}
		assert.Equal(t, 1, Run(context.Background(), s, bad, &out, true))
		assert.Empty(t, out.String())
	})
}

func TestCollections(t *testing.T) {
	f := newFixture(t, storage.BackendSQLite)
	f.index()

	infos, err := f.searcher(newMockEmbedder()).Collections(context.Background())
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, storage.CollectionName(f.root), infos[0].Name)
}
