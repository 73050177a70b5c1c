package reranker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/vectorquery/internal/storage"
)

func hit(id, path string, distance float64, doc string) storage.Hit {
	return storage.Hit{
		ID:       id,
		Distance: distance,
		Document: doc,
		Metadata: storage.Metadata{"path": path},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "", want: NameNaive},
		{name: "naive", want: NameNaive},
		{name: " Lexical ", want: NameLexical},
		{name: "cross-encoder", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRerank)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, r.Name())
		})
	}
	assert.Equal(t, []string{NameNaive, NameLexical}, Names())
}

func TestNaiveReranker(t *testing.T) {
	ctx := context.Background()
	r := NewNaive()

	t.Run("groups by path and averages", func(t *testing.T) {
		in := Input{
			Queries: []string{"q1", "q2"},
			Hits: [][]storage.Hit{
				{hit("1", "a.go", 0.1, ""), hit("2", "b.go", 0.2, "")},
				{hit("3", "b.go", 0.0, ""), hit("4", "a.go", 0.5, ""), hit("5", "c.go", 0.05, "")},
			},
			NResult: 10,
		}
		// a.go: -(0.1+0.5)/2 = -0.3, b.go: -0.1, c.go: -0.05
		got, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"c.go", "b.go", "a.go"}, got)
	})

	t.Run("groups by chunk id", func(t *testing.T) {
		in := Input{
			Queries: []string{"q"},
			Hits:    [][]storage.Hit{{hit("c1", "a.go", 0.3, ""), hit("c2", "a.go", 0.1, "")}},
			NResult: 1,
			ByChunk: true,
		}
		got, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"c2"}, got)
	})

	t.Run("ties keep first-seen order", func(t *testing.T) {
		in := Input{
			Hits:    [][]storage.Hit{{hit("1", "z.go", 0.2, ""), hit("2", "a.go", 0.2, "")}},
			NResult: 2,
		}
		first, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		second, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"z.go", "a.go"}, first)
		assert.Equal(t, first, second)
	})

	t.Run("missing path falls back to id", func(t *testing.T) {
		in := Input{
			Hits:    [][]storage.Hit{{{ID: "/abs/file.go", Distance: 0.1}}},
			NResult: 1,
		}
		got, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"/abs/file.go"}, got)
	})

	t.Run("empty pool", func(t *testing.T) {
		got, err := r.Rerank(ctx, Input{NResult: 3})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := r.Rerank(ctx, Input{NResult: 0})
		assert.ErrorIs(t, err, ErrRerank)

		_, err = r.Rerank(ctx, Input{Queries: []string{"a", "b"}, Hits: [][]storage.Hit{{}}, NResult: 1})
		assert.ErrorIs(t, err, ErrRerank)

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = r.Rerank(cctx, Input{NResult: 1})
		assert.ErrorIs(t, err, ErrRerank)
	})
}

func TestLexicalReranker(t *testing.T) {
	ctx := context.Background()
	r := NewLexical()

	t.Run("term overlap lifts a farther hit", func(t *testing.T) {
		in := Input{
			Queries: []string{"authentication token retry"},
			Hits: [][]storage.Hit{{
				hit("1", "params.go", 0.10, "invalid request parameter"),
				hit("2", "auth.go", 0.20, "token refresh and authentication handling"),
			}},
			NResult: 2,
		}
		// params.go: 0.45, auth.go: 0.4 + 0.5*(2/3)
		got, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"auth.go", "params.go"}, got)
	})

	t.Run("query without terms ranks by similarity", func(t *testing.T) {
		in := Input{
			Queries: []string{"is it"},
			Hits:    [][]storage.Hit{{hit("1", "a.go", 0.4, "is it"), hit("2", "b.go", 0.1, "")}},
			NResult: 1,
		}
		got, err := r.Rerank(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, []string{"b.go"}, got)
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"parsefile", "parse_file", "returns", "error"},
		tokenize("ParseFile? no: parse_file returns an error"))
	assert.InDelta(t, 0.5, termOverlap([]string{"foo", "bar", "foo"}, []string{"foo"}), 1e-9)
	assert.Zero(t, termOverlap(nil, []string{"foo"}))
}
