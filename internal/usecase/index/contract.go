package index

import (
	"context"

	"github.com/coursekb/coursekb/internal/domain"
)

// Splitter cuts a document into token-bounded chunk texts.
type Splitter interface {
	Split(text string) []string
}

// Embedder vectorizes chunk and post texts.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Uploader persists validated points into the vector store.
type Uploader interface {
	Upsert(ctx context.Context, points []domain.VectorPoint) (domain.UpsertReport, error)
}
