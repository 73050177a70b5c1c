package filter

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/vectorquery/internal/pathutil"
)

// maxGlobWorkers bounds concurrent pattern expansion.
const maxGlobWorkers = 8

// ExpandGlobs expands each pattern (supporting ** and a leading ~) and
// returns the matches in pattern order without duplicates. Patterns without
// glob syntax are returned as given, whether or not they exist.
func ExpandGlobs(ctx context.Context, patterns []string) ([]string, error) {
	matches := make([][]string, len(patterns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxGlobWorkers)

	for i, pattern := range patterns {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			expanded, err := pathutil.Expand(pattern, false)
			if err != nil {
				return err
			}
			expanded = filepath.Clean(expanded)
			if !hasMeta(expanded) {
				matches[i] = []string{expanded}
				return nil
			}
			found, err := doublestar.FilepathGlob(expanded)
			if err != nil {
				return fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
			}
			matches[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var out []string
	for _, group := range matches {
		for _, m := range group {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out, nil
}

// ResolveExclusions expands patterns and keeps only paths that exist as
// regular files, as absolute cleaned paths. Directories and missing paths
// are dropped silently.
func ResolveExclusions(ctx context.Context, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	expanded, err := ExpandGlobs(ctx, patterns)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(expanded))
	for _, path := range expanded {
		if !pathutil.IsRegularFile(path) {
			continue
		}
		abs, err := pathutil.Expand(path, true)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

func hasMeta(pattern string) bool {
	for _, c := range pattern {
		switch c {
		case '*', '?', '[', '{':
			return true
		}
	}
	return false
}
