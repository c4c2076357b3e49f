package domain

import "errors"

var (
	// ErrEmptyQuestion signals a blank question; no collaborator is called.
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrNoResults signals that the similarity search matched nothing.
	ErrNoResults = errors.New("no relevant results")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationProviderError signals a chat-completion provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrVectorStoreError signals a vector store failure.
	ErrVectorStoreError = errors.New("vector store error")
	// ErrInvalidPoint signals a vector point failing shape/type validation.
	ErrInvalidPoint = errors.New("invalid vector point")
	// ErrBatchUpload signals a failed upsert batch; the indexing run aborts.
	ErrBatchUpload = errors.New("batch upload failed")
)
