package driven

import (
	"context"

	"github.com/docchat-cli/docchat/internal/core/domain"
)

// DocumentFilter selects document records by equality on indexed fields.
// Zero-valued fields are not applied.
type DocumentFilter struct {
	// SourceID matches records belonging to one ingestion source.
	SourceID string

	// DocumentID matches records for one underlying file.
	DocumentID string
}

// ChunkFilter selects chunk records by equality on indexed fields.
// Zero-valued fields are not applied.
type ChunkFilter struct {
	// DocumentID matches chunks owned by one document.
	DocumentID string
}

// ChunkHit is a similarity search result.
type ChunkHit struct {
	// Chunk is the matched record.
	Chunk domain.Chunk

	// Score is the cosine similarity to the search phrase (higher is closer).
	Score float64
}

// DocumentStore persists document records.
// It is a pure translation layer over the backing store and owns no
// business logic.
type DocumentStore interface {
	// EnsureSchema creates the backing collection if it does not exist.
	EnsureSchema(ctx context.Context) error

	// List returns records matching the filter in insertion order.
	// A limit <= 0 means unbounded.
	List(ctx context.Context, filter DocumentFilter, limit int) ([]domain.Document, error)

	// Upsert inserts or overwrites records by Key. Idempotent: re-upserting
	// the same Key overwrites, never duplicates.
	Upsert(ctx context.Context, docs ...domain.Document) error

	// Delete removes records by Key. Deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) error
}

// ChunkStore persists chunk records and supports similarity search.
// Chunk embeddings are produced by the store adapter at write time; callers
// never supply vectors.
type ChunkStore interface {
	// EnsureSchema creates the backing collection if it does not exist.
	EnsureSchema(ctx context.Context) error

	// List returns records matching the filter in insertion order.
	// A limit <= 0 means unbounded.
	List(ctx context.Context, filter ChunkFilter, limit int) ([]domain.Chunk, error)

	// Upsert inserts or overwrites records by Key, embedding each chunk's
	// Text. Idempotent by Key.
	Upsert(ctx context.Context, chunks ...domain.Chunk) error

	// Delete removes records by Key. Deleting an absent key is not an error.
	Delete(ctx context.Context, keys ...string) error

	// Search returns up to limit chunks ranked by similarity to the phrase.
	// Returns domain.ErrEmbeddingUnavailable when no embedding service is
	// configured.
	Search(ctx context.Context, phrase string, filter ChunkFilter, limit int) ([]ChunkHit, error)
}
