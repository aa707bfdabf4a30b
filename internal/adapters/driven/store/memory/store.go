// Package memory provides in-memory record store adapters.
//
// The adapters implement the same interfaces as the SQLite store and are
// used for tests and for throwaway sessions where persistence across runs
// is not wanted.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
)

// Ensure the adapters implement the interfaces.
var (
	_ driven.DocumentStore = (*DocumentStore)(nil)
	_ driven.ChunkStore    = (*ChunkStore)(nil)
)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
// Records are kept in insertion order.
type DocumentStore struct {
	mu      sync.RWMutex
	keys    []string
	records map[string]domain.Document

	// Write counters for observing store traffic in tests.
	upserts int
	deletes int
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{records: make(map[string]domain.Document)}
}

// EnsureSchema is a no-op for the in-memory store.
func (s *DocumentStore) EnsureSchema(_ context.Context) error { return nil }

// List returns records matching the filter in insertion order.
func (s *DocumentStore) List(_ context.Context, filter driven.DocumentFilter, limit int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Document
	for _, key := range s.keys {
		doc := s.records[key]
		if filter.SourceID != "" && doc.SourceID != filter.SourceID {
			continue
		}
		if filter.DocumentID != "" && doc.DocumentID != filter.DocumentID {
			continue
		}
		out = append(out, doc)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Upsert inserts or overwrites records by Key.
func (s *DocumentStore) Upsert(_ context.Context, docs ...domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if _, exists := s.records[doc.Key]; !exists {
			s.keys = append(s.keys, doc.Key)
		}
		s.records[doc.Key] = doc
		s.upserts++
	}
	return nil
}

// Delete removes records by Key. Absent keys are ignored.
func (s *DocumentStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, exists := s.records[key]; exists {
			delete(s.records, key)
			s.removeKey(key)
		}
		s.deletes++
	}
	return nil
}

// Writes returns the total upsert and delete call counts.
func (s *DocumentStore) Writes() (upserts, deletes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts, s.deletes
}

func (s *DocumentStore) removeKey(key string) {
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return
		}
	}
}

// ChunkStore is an in-memory implementation of driven.ChunkStore.
// When an embedding service is provided, chunk vectors are computed at
// upsert time and similarity search ranks by cosine similarity; without
// one, Search returns domain.ErrEmbeddingUnavailable.
type ChunkStore struct {
	mu       sync.RWMutex
	keys     []string
	records  map[string]domain.Chunk
	embedder driven.EmbeddingService

	upserts int
	deletes int
}

// NewChunkStore creates a new in-memory chunk store.
// The embedding service may be nil.
func NewChunkStore(embedder driven.EmbeddingService) *ChunkStore {
	return &ChunkStore{
		records:  make(map[string]domain.Chunk),
		embedder: embedder,
	}
}

// EnsureSchema is a no-op for the in-memory store.
func (s *ChunkStore) EnsureSchema(_ context.Context) error { return nil }

// List returns records matching the filter in insertion order.
func (s *ChunkStore) List(_ context.Context, filter driven.ChunkFilter, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Chunk
	for _, key := range s.keys {
		chunk := s.records[key]
		if filter.DocumentID != "" && chunk.DocumentID != filter.DocumentID {
			continue
		}
		out = append(out, chunk)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Upsert inserts or overwrites records by Key, embedding each chunk's Text
// when an embedding service is configured.
func (s *ChunkStore) Upsert(ctx context.Context, chunks ...domain.Chunk) error {
	if s.embedder != nil {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		for i := range chunks {
			chunks[i].Vector = vectors[i]
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		if _, exists := s.records[chunk.Key]; !exists {
			s.keys = append(s.keys, chunk.Key)
		}
		s.records[chunk.Key] = chunk
		s.upserts++
	}
	return nil
}

// Delete removes records by Key. Absent keys are ignored.
func (s *ChunkStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, exists := s.records[key]; exists {
			delete(s.records, key)
			s.removeKey(key)
		}
		s.deletes++
	}
	return nil
}

// Search ranks chunks by cosine similarity to the phrase's embedding.
func (s *ChunkStore) Search(ctx context.Context, phrase string, filter driven.ChunkFilter, limit int) ([]driven.ChunkHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	query, err := s.embedder.Embed(ctx, phrase)
	if err != nil {
		return nil, err
	}

	candidates, err := s.List(ctx, filter, 0)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.ChunkHit, 0, len(candidates))
	for _, chunk := range candidates {
		hits = append(hits, driven.ChunkHit{
			Chunk: chunk,
			Score: cosineSimilarity(query, chunk.Vector),
		})
	}
	// Stable sort keeps insertion order on ties so results are
	// deterministic for tests.
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// Writes returns the total upsert and delete call counts.
func (s *ChunkStore) Writes() (upserts, deletes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts, s.deletes
}

func (s *ChunkStore) removeKey(key string) {
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			return
		}
	}
}

// cosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched or zero-length vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
