package services

import (
	"context"
	"fmt"

	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/ports/driving"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// DefaultSearchLimit is the result count used when callers pass limit <= 0.
const DefaultSearchLimit = 5

// RetrievalService maps the chunk store's similarity search results to
// citation-ready passages. It performs no ranking of its own and no mutation.
type RetrievalService struct {
	chunkStore driven.ChunkStore
}

// NewRetrievalService creates a retrieval service over the given chunk store.
func NewRetrievalService(chunkStore driven.ChunkStore) *RetrievalService {
	return &RetrievalService{chunkStore: chunkStore}
}

// Search returns up to limit passages ranked by similarity to phrase.
// An empty filenameFilter searches all files.
func (s *RetrievalService) Search(ctx context.Context, phrase, filenameFilter string, limit int) ([]domain.Passage, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	hits, err := s.chunkStore.Search(ctx, phrase, driven.ChunkFilter{DocumentID: filenameFilter}, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	passages := make([]domain.Passage, len(hits))
	for i, hit := range hits {
		passages[i] = domain.Passage{
			Filename:   hit.Chunk.DocumentID,
			PageNumber: hit.Chunk.PageNumber,
			Text:       hit.Chunk.Text,
			Score:      hit.Score,
		}
	}
	return passages, nil
}

// FormatResults renders passages as the XML result fragments the chat
// surface embeds in tool replies.
func FormatResults(passages []domain.Passage) []string {
	results := make([]string, len(passages))
	for i, p := range passages {
		results[i] = fmt.Sprintf("<result filename=%q page_number=\"%d\">%s</result>",
			p.Filename, p.PageNumber, p.Text)
	}
	return results
}
