package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidChunkSize indicates a non-positive chunk size budget.
	// This is a configuration error and is never retried.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Similarity search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// The chat surface is disabled without it.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrExtractorNotFound indicates the text extraction tool is missing.
	ErrExtractorNotFound = errors.New("text extractor not found")
)
