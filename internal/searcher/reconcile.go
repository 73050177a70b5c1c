package searcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/pathutil"
	"github.com/dshills/vectorquery/internal/storage"
	"github.com/dshills/vectorquery/pkg/types"
)

// reconciler turns ranked identifiers into results, reading documents and
// chunk lines from disk rather than trusting indexed text.
type reconciler struct {
	coll     storage.Collection
	include  types.IncludeSet
	root     string
	absolute bool
	logger   *zap.Logger
}

// reconcile builds results for ids in order. Identifiers that no longer map
// to a file or a complete chunk are skipped with a log entry.
func (r *reconciler) reconcile(ctx context.Context, ids []string) ([]types.StructuredResult, error) {
	results := make([]types.StructuredResult, 0, len(ids))
	add := func(id string, res types.StructuredResult) {
		if err := res.Validate(); err != nil {
			r.logger.Warn("result has nothing to report, skipping",
				zap.String("id", id), zap.Error(err))
			return
		}
		results = append(results, res)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if file := r.resolve(id); pathutil.IsRegularFile(file) {
			if res, ok := r.fileResult(file); ok {
				add(id, res)
			}
			continue
		}

		if r.include.LineRanges() {
			res, ok, err := r.chunkResult(ctx, id)
			if err != nil {
				return nil, err
			}
			if ok {
				add(id, res)
			}
			continue
		}

		r.logger.Warn("result is no longer a valid file, please re-index the project",
			zap.String("id", id))
	}

	for i := range results {
		if results[i].Path != nil {
			results[i].Path = types.StringPtr(pathutil.Cleanup(*results[i].Path))
		}
	}
	return results, nil
}

func (r *reconciler) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.root, path)
}

func (r *reconciler) fileResult(file string) (types.StructuredResult, bool) {
	var res types.StructuredResult
	if r.include.Has(types.IncludeDocument) {
		content, err := os.ReadFile(file)
		if err != nil {
			r.logger.Warn("failed to read result file, skipping",
				zap.String("path", file), zap.Error(err))
			return res, false
		}
		res.Document = types.StringPtr(string(content))
	}
	res.Path = types.StringPtr(pathutil.Display(file, r.root, r.absolute))
	return res.Project(r.include), true
}

func (r *reconciler) chunkResult(ctx context.Context, id string) (types.StructuredResult, bool, error) {
	var res types.StructuredResult

	recs, err := r.coll.Get(ctx, storage.GetRequest{IDs: []string{id}})
	if err != nil {
		return res, false, fmt.Errorf("fetching chunk %s: %w", id, err)
	}
	if len(recs) == 0 || len(recs[0].Metadata) == 0 {
		r.logger.Error("chunk has no metadata, skipping", zap.String("id", id))
		return res, false, nil
	}

	meta := recs[0].Metadata
	start, hasStart := meta.Start()
	end, hasEnd := meta.End()
	if !hasStart || !hasEnd || start < 0 || end < start {
		r.logger.Debug("chunk has no usable line range, skipping",
			zap.String("id", id), zap.Any("metadata", map[string]any(meta)))
		return res, false, nil
	}

	file := r.resolve(meta.Path())
	text, err := readLineRange(file, start, end)
	if err != nil {
		r.logger.Warn("chunk source is no longer readable, please re-index the project",
			zap.String("id", id), zap.String("path", file), zap.Error(err))
		return res, false, nil
	}

	res.Chunk = types.StringPtr(text)
	res.ChunkID = types.StringPtr(id)
	res.StartLine = types.IntPtr(start)
	res.EndLine = types.IntPtr(end)
	if r.include.Has(types.IncludePath) {
		res.Path = types.StringPtr(pathutil.Display(file, r.root, r.absolute))
	}
	return res, true, nil
}

// readLineRange returns lines start..end (0-based, inclusive) of file with
// their terminators, concatenated. Lines past the end of file are ignored.
func readLineRange(file string, start, end int) (string, error) {
	if file == "" {
		return "", errors.New("chunk has no source path")
	}
	f, err := os.Open(file)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	var sb strings.Builder
	reader := bufio.NewReader(f)
	for line := 0; line <= end; line++ {
		text, err := reader.ReadString('\n')
		if line >= start {
			sb.WriteString(text)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return sb.String(), nil
}
