package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Environment variables consulted when no explicit configuration is given.
const (
	EnvProvider     = "VECTORQUERY_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	CacheSize int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// New creates an embedder with explicit configuration. An empty provider
// is resolved with DetectProvider; an empty API key falls back to the
// provider's environment variable.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(EnvJinaAPIKey)
		}
		return NewJinaProvider(cfg, cache)
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		}
		return NewOpenAIProvider(cfg, cache)
	case ProviderLocal:
		return NewLocalProvider(cfg, cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromEnv creates an embedder from environment variables only.
func NewFromEnv() (Embedder, error) {
	return New(Config{CacheSize: 10000})
}

// DetectProvider returns the provider that would be used based on current environment
// Priority:
// 1. VECTORQUERY_EMBEDDING_PROVIDER (jina, openai, local)
// 2. Check for API keys: JINA_API_KEY, OPENAI_API_KEY
// 3. Default to local if no API keys found
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
