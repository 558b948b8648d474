// Package embedding defines the embedding provider abstraction and its
// Gemini implementation. Embedding generation is a network call that
// may fail or rate-limit; retries are the caller's concern.
package embedding

import "context"

// Embedder turns text into fixed-length vectors. Implementations must
// produce a deterministic dimensionality per model, reported by
// Dimension, matching the vector store's configured column size.
type Embedder interface {
	// EmbedDocuments embeds a batch of passages for indexing.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// Dimension returns the vector length this embedder produces.
	Dimension() int
}
