package answer

import (
	"context"

	"github.com/coursekb/coursekb/internal/domain"
)

// Embedder vectorizes the question text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Searcher runs nearest-neighbor search over the vector store.
type Searcher interface {
	Search(ctx context.Context, vector []float32, topK int) ([]domain.ScoredPoint, error)
}

// Generator produces the grounded answer text.
type Generator interface {
	Generate(ctx context.Context, system, groundingContext, question string) (string, error)
}
