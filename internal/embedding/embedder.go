// Package embedding provides the text embedding oracle interface and clients.
package embedding

import "context"

// Embedder produces vector embeddings for text. Vectors are L2-normalized so
// that inner product equals cosine similarity. Dimensionality is fixed per
// deployment and must match across chunk and query embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
