package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/chunker"
	"github.com/dshills/vectorquery/internal/config"
	"github.com/dshills/vectorquery/internal/embedder"
	"github.com/dshills/vectorquery/internal/logging"
	"github.com/dshills/vectorquery/internal/pathutil"
	"github.com/dshills/vectorquery/internal/searcher"
	"github.com/dshills/vectorquery/internal/storage"
)

// app holds the dependencies built from configuration.
type app struct {
	cfg      *config.Config
	root     string
	logger   *zap.Logger
	embedder embedder.Embedder
	searcher *searcher.Searcher
}

// newApp resolves configuration for cmd and wires the query pipeline.
func newApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	root, err := pathutil.Expand(flags.projectRoot, true)
	if err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	cfg, err := config.Load(config.Options{ConfigFile: flags.configFile, ProjectRoot: root})
	if err != nil {
		return nil, err
	}
	if flags.backend != "" {
		cfg.DBBackend = flags.backend
		if flags.backend == storage.BackendChromem && cfg.DBPath == config.DefaultDBPath {
			cfg.DBPath = config.DefaultChromemDir
		}
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Dimension: cfg.Embedding.Dimension,
		CacheSize: cfg.Embedding.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	segmenter, err := chunker.New(cfg.ChunkSize, cfg.OverlapRatio)
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	logger.Debug("configuration loaded",
		zap.String("project_root", root),
		zap.String("backend", cfg.DBBackend),
		zap.String("db_path", cfg.DBPath),
		zap.String("embedding_provider", emb.Provider()),
		zap.String("embedding_model", emb.Model()))

	s := searcher.NewSearcher(
		storage.NewOpener(cfg.StorageConfig(), logger),
		emb,
		searcher.WithChunker(segmenter),
		searcher.WithLogger(logger),
	)

	return &app{cfg: cfg, root: root, logger: logger, embedder: emb, searcher: s}, nil
}

func (a *app) Close() {
	_ = a.embedder.Close()
	_ = a.logger.Sync()
}
