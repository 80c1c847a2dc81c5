package retrieval

import (
	"context"

	"github.com/kailas-cloud/lectern/internal/domain"
	"github.com/kailas-cloud/lectern/internal/domain/passage"
)

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index returns the topK nearest passages to a vector, best first.
type Index interface {
	Query(ctx context.Context, vector []float32, topK int) ([]passage.RawMatch, error)
}
