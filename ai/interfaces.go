package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use and deterministic
// for identical input.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider owns an Embedder and the resources behind it.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Model names the embedding model in use. It is recorded in index manifests.
	Model() string

	// Close releases resources held by the provider and its services.
	Close() error
}
