// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// Embedder maps text to a fixed-length vector for one language.
// The core treats it as an opaque synchronous function.
//
// Implementations may include:
//   - fastText crawl vectors (cc.<lang>.300)
//   - Ollama (nomic-embed-text, all-minilm)
type Embedder interface {
	// Embed generates a vector embedding for the given text.
	// Errors wrapping domain.ErrEmbeddingUnavailable mean the model itself
	// is unusable; any other error only affects this text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size (e.g., 300, 768).
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Close releases resources.
	Close() error
}

// EmbedderProvider resolves the embedder for a language tag.
//
// Acquisition (download, decompress, load) may be slow the first time.
// It must be idempotent: acquiring an already cached language is a cheap
// no-op that performs no download or decompression.
type EmbedderProvider interface {
	// Acquire returns the embedder for lang. Failures wrap
	// domain.ErrEmbeddingUnavailable.
	Acquire(ctx context.Context, lang string) (Embedder, error)

	// Close releases every embedder handed out.
	Close() error
}
