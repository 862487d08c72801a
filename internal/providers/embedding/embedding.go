package embedding

import "context"

// Embedder converts text into vectors. Model() identifies the embedding
// space; collections indexed under a different model id must not be queried
// through this embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
