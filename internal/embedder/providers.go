package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hash"

	// API endpoints
	DefaultJinaURL   = "https://api.jina.ai/v1/embeddings"
	DefaultOpenAIURL = "https://api.openai.com/v1/embeddings"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// DefaultTimeout bounds a single API call
	DefaultTimeout = 30 * time.Second
)

// HTTPProvider implements Embedder for OpenAI-compatible embedding APIs
// (Jina AI and OpenAI). Calls are retried with backoff and guarded by a
// circuit breaker.
type HTTPProvider struct {
	provider   string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	cache      *Cache
	breaker    *gobreaker.CircuitBreaker[[]*Embedding]
	retry      RetryConfig
}

// httpSettings holds the per-provider defaults and user overrides.
type httpSettings struct {
	provider  string
	endpoint  string
	apiKey    string
	model     string
	dimension int
	timeout   time.Duration
	cache     *Cache
	logger    *zap.Logger
}

func newHTTPProvider(s httpSettings) (*HTTPProvider, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("%w: API key for %s not set", ErrNoProviderEnabled, s.provider)
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}

	return &HTTPProvider{
		provider:  s.provider,
		endpoint:  s.endpoint,
		apiKey:    s.apiKey,
		model:     s.model,
		dimension: s.dimension,
		httpClient: &http.Client{
			Timeout: s.timeout,
		},
		cache:   s.cache,
		breaker: newBreaker(s.provider, s.logger),
		retry:   DefaultRetryConfig(),
	}, nil
}

// NewJinaProvider creates a Jina AI embedder. Empty model and endpoint use the defaults.
func NewJinaProvider(cfg Config, cache *Cache) (*HTTPProvider, error) {
	return newHTTPProvider(httpSettings{
		provider:  ProviderJina,
		endpoint:  orDefault(cfg.BaseURL, DefaultJinaURL),
		apiKey:    cfg.APIKey,
		model:     orDefault(cfg.Model, DefaultJinaModel),
		dimension: orDefaultInt(cfg.Dimension, JinaDimension),
		timeout:   cfg.Timeout,
		cache:     cache,
		logger:    cfg.Logger,
	})
}

// NewOpenAIProvider creates an OpenAI embedder. Empty model and endpoint use the defaults.
func NewOpenAIProvider(cfg Config, cache *Cache) (*HTTPProvider, error) {
	return newHTTPProvider(httpSettings{
		provider:  ProviderOpenAI,
		endpoint:  orDefault(cfg.BaseURL, DefaultOpenAIURL),
		apiKey:    cfg.APIKey,
		model:     orDefault(cfg.Model, DefaultOpenAIModel),
		dimension: orDefaultInt(cfg.Dimension, OpenAIDimension),
		timeout:   cfg.Timeout,
		cache:     cache,
		logger:    cfg.Logger,
	})
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

// GenerateBatch serves cached texts from the cache and sends the rest in one API call.
func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	model := orDefault(req.Model, p.model)

	embeddings := make([]*Embedding, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		if p.cache != nil {
			if emb, ok := p.cache.Get(cacheKey(model, text)); ok {
				embeddings[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	if len(missing) > 0 {
		texts := make([]string, len(missing))
		for j, i := range missing {
			texts[j] = req.Texts[i]
		}

		fetched, err := p.breaker.Execute(func() ([]*Embedding, error) {
			return retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
				return p.callAPI(ctx, texts, model)
			})
		})
		if err != nil {
			if isCircuitOpen(err) {
				return nil, fmt.Errorf("%w: %s", ErrCircuitOpen, p.provider)
			}
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		if len(fetched) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(texts), len(fetched))
		}

		for j, i := range missing {
			emb := fetched[j]
			emb.Hash = ComputeHash(req.Texts[i])
			if p.cache != nil {
				p.cache.Set(cacheKey(model, req.Texts[i]), emb)
			}
			embeddings[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.provider,
		Model:      model,
	}, nil
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
		// Client errors other than rate limiting won't succeed on retry.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(err)
		}
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, permanent(fmt.Errorf("response index %d out of range", data.Index))
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  p.provider,
			Model:     model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, permanent(fmt.Errorf("no embedding returned for input %d", i))
		}
	}

	return embeddings, nil
}

func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

func (p *HTTPProvider) Provider() string {
	return p.provider
}

func (p *HTTPProvider) Model() string {
	return p.model
}

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic pseudo-embeddings from a hash of the
// text. It needs no network access and is meant for tests and offline use;
// it carries no semantic meaning.
type LocalProvider struct {
	model     string
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local embedder
func NewLocalProvider(cfg Config, cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model:     orDefault(cfg.Model, DefaultLocalModel),
		dimension: orDefaultInt(cfg.Dimension, LocalDimension),
		cache:     cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := cacheKey(l.model, req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(key); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    NormalizeVector(hashVector(req.Text, l.dimension)),
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      ComputeHash(req.Text),
	}

	if l.cache != nil {
		l.cache.Set(key, emb)
	}
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector fills a vector from a SHA-256 stream seeded with text, with
// values in [-1, 1].
func hashVector(text string, dimension int) []float32 {
	vector := make([]float32, dimension)
	var block [sha256.Size]byte
	var counter [8]byte
	for i := 0; i < dimension; i++ {
		if i%sha256.Size == 0 {
			binary.LittleEndian.PutUint64(counter[:], uint64(i/sha256.Size))
			block = sha256.Sum256(append([]byte(text), counter[:]...))
		}
		vector[i] = float32(block[i%sha256.Size])/127.5 - 1
	}
	return vector
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
