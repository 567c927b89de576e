package interfaces

import "context"

// EmbedderFunc defines the signature for any function that can generate embeddings
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed lets an EmbedderFunc satisfy single-method embedder interfaces.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
