// Package embedder turns query text into vectors using a remote or local
// embedding provider.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "jina"})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := embedder.EmbedTexts(ctx, emb, []string{"open database connection"})
//
// EmbedTexts splits its input into batches of DefaultBatchSize and returns
// vectors in input order. An empty input makes no provider call.
//
// # Provider Selection
//
// When Config.Provider is empty the provider is chosen from the environment:
//
//  1. If VECTORQUERY_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if JINA_API_KEY is set → use Jina AI
//  3. Else if OPENAI_API_KEY is set → use OpenAI
//  4. Else → local provider (offline mode)
//
// Jina AI produces 1024 dimensions, OpenAI 1536. The local provider hashes
// text into 384-dimensional unit vectors. It is deterministic and offline
// but carries no semantic signal, so it suits tests and smoke runs only.
//
// # Verifying a Collection
//
// A collection can only be searched with the embedding function that built
// it. Verify compares the provider, model and dimension recorded on the
// collection with the configured embedder:
//
//	if err := embedder.Verify(emb, info.EmbeddingProvider, info.EmbeddingModel, info.Dimension); err != nil {
//	    // ErrEmbeddingMismatch or ErrDimensionMismatch
//	}
//
// # Failure Handling
//
// Remote calls are retried with exponential backoff. 4xx responses other
// than 429 are not retried. Repeated failures trip a circuit breaker, after
// which calls fail fast with ErrCircuitOpen until the breaker half-opens.
//
// Embeddings are cached per model and content hash in an LRU cache when
// Config.CacheSize is positive.
package embedder
