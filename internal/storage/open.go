package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/pathutil"
)

// Supported backends.
const (
	BackendSQLite  = "sqlite"
	BackendChromem = "chromem"
)

// Config selects and locates an index backend.
type Config struct {
	// Backend is "sqlite" (default) or "chromem".
	Backend string
	// Path is the SQLite database file or the chromem directory. A leading ~ is expanded.
	Path string
}

// Store is a Client that can also create and drop collections.
type Store interface {
	Client
	Writer
}

// Opener acquires a Client for one query invocation.
type Opener func(ctx context.Context) (Client, error)

// NewOpener returns an Opener for cfg. The query path never writes: an
// index that does not exist yet opens as one holding no collections.
func NewOpener(cfg Config, logger *zap.Logger) Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) (Client, error) {
		path, err := resolvePath(cfg.Path)
		if err != nil {
			return nil, err
		}
		if path != "" && path != ":memory:" {
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				logger.Debug("index does not exist", zap.String("path", path))
				return missingIndex{path: path}, nil
			}
		}
		return Open(ctx, cfg, logger)
	}
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	path, err := resolvePath(cfg.Path)
	if err != nil {
		return nil, err
	}

	switch cfg.Backend {
	case BackendSQLite, "":
		if path == "" {
			return nil, fmt.Errorf("sqlite backend requires a database path")
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("creating directory for %s: %w", path, err)
			}
		}
		logger.Debug("opening sqlite index", zap.String("path", path), zap.String("build", BuildMode))
		return NewSQLiteStorage(path)

	case BackendChromem:
		if path == "" {
			return nil, fmt.Errorf("chromem backend requires a directory path")
		}
		logger.Debug("opening chromem index", zap.String("path", path))
		return NewChromemStorage(path, logger)

	default:
		return nil, fmt.Errorf("unsupported index backend: %s (supported: %s, %s)", cfg.Backend, BackendSQLite, BackendChromem)
	}
}

func resolvePath(path string) (string, error) {
	if path == "" || path == ":memory:" {
		return path, nil
	}
	return pathutil.Expand(path, true)
}

// missingIndex stands in for an index that has not been created.
type missingIndex struct {
	path string
}

func (m missingIndex) Collection(ctx context.Context, name string) (Collection, error) {
	return nil, fmt.Errorf("%w: %s (no index at %s)", ErrCollectionNotFound, name, m.path)
}

func (m missingIndex) ListCollections(ctx context.Context) ([]CollectionInfo, error) {
	return []CollectionInfo{}, nil
}

func (m missingIndex) Close() error { return nil }
