package domain

import (
	"fmt"
	"math"
)

// DefaultVectorDim is the embedding dimensionality of the reference
// deployment (text-embedding-3-small).
const DefaultVectorDim = 1536

// VectorPoint is the persisted unit of the vector store: an identifier, an
// embedding vector, and the payload returned by similarity search.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Validate checks the point's shape before upload: a non-empty ID, a vector
// of exactly dim elements, and every element finite. Invalid points must be
// rejected by callers, never coerced.
func (p VectorPoint) Validate(dim int) error {
	if p.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPoint)
	}
	if len(p.Vector) != dim {
		return fmt.Errorf("%w: vector has %d elements, want %d", ErrInvalidPoint, len(p.Vector), dim)
	}
	for i, v := range p.Vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: non-finite element at index %d", ErrInvalidPoint, i)
		}
	}
	return nil
}

// ScoredPoint is one similarity-search hit: the stored point's payload plus
// the store's similarity score. Result slices are ordered by descending score.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload Payload
}

// UpsertReport summarizes one upsert run: how many points the store
// acknowledged and which ones validation dropped before upload.
type UpsertReport struct {
	Uploaded int
	Dropped  []DroppedPoint
}

// DroppedPoint records a point removed by pre-upload validation.
type DroppedPoint struct {
	ID  string
	Err error
}
