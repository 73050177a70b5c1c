// Package config loads vectorquery settings from YAML files, a project .env
// file and VECTORQUERY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/dshills/vectorquery/internal/chunker"
	"github.com/dshills/vectorquery/internal/reranker"
	"github.com/dshills/vectorquery/internal/searcher"
	"github.com/dshills/vectorquery/internal/storage"
)

// Config is the resolved configuration for one invocation.
type Config struct {
	DBBackend       string          `koanf:"db_backend" validate:"oneof=sqlite chromem"`
	DBPath          string          `koanf:"db_path" validate:"required"`
	Embedding       EmbeddingConfig `koanf:"embedding"`
	ChunkSize       int             `koanf:"chunk_size"`
	OverlapRatio    float64         `koanf:"overlap_ratio" validate:"gte=0,lt=1"`
	NResult         int             `koanf:"n_result" validate:"gte=1"`
	QueryMultiplier float64         `koanf:"query_multiplier"`
	Reranker        string          `koanf:"reranker" validate:"omitempty,oneof=naive lexical"`
	UseAbsolutePath bool            `koanf:"use_absolute_path"`
	Log             LogConfig       `koanf:"log"`
}

// EmbeddingConfig selects the embedding provider. An empty provider is
// detected from the environment.
type EmbeddingConfig struct {
	Provider  string `koanf:"provider" validate:"omitempty,oneof=jina openai local"`
	Model     string `koanf:"model"`
	APIKey    string `koanf:"api_key"`
	BaseURL   string `koanf:"base_url" validate:"omitempty,url"`
	Dimension int    `koanf:"dimension" validate:"gte=0"`
	CacheSize int    `koanf:"cache_size" validate:"gte=0"`
}

// LogConfig controls the stderr logger.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=console json"`
}

// Default values.
const (
	DefaultDBPath     = "~/.local/share/vectorquery/index.db"
	DefaultChromemDir = "~/.local/share/vectorquery/chromem"
	DefaultMultiplier = -1
	DefaultCacheSize  = 10000
	DefaultLogLevel   = "warn"
	DefaultLogFormat  = "console"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

var validate = validator.New()

// Defaults returns the configuration used when nothing overrides it.
func Defaults() Config {
	return Config{
		DBBackend:       storage.BackendSQLite,
		DBPath:          DefaultDBPath,
		Embedding:       EmbeddingConfig{CacheSize: DefaultCacheSize},
		ChunkSize:       chunker.DefaultChunkSize,
		OverlapRatio:    chunker.DefaultOverlapRatio,
		NResult:         searcher.DefaultNResult,
		QueryMultiplier: DefaultMultiplier,
		Reranker:        reranker.NameNaive,
		Log:             LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// Validate checks c against its struct tags.
func (c *Config) Validate() error {
	c.DBBackend = strings.ToLower(c.DBBackend)
	c.Embedding.Provider = strings.ToLower(c.Embedding.Provider)
	c.Log.Level = strings.ToLower(c.Log.Level)

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// StorageConfig returns the index location for c.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{Backend: c.DBBackend, Path: c.DBPath}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s failed on '%s'", field, fe.Tag())
	}
}
