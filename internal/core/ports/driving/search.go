package driving

import (
	"context"

	"github.com/docchat-cli/docchat/internal/core/domain"
)

// Retriever finds passages relevant to a search phrase.
type Retriever interface {
	// Search returns up to limit passages ranked by similarity to phrase.
	// An empty filenameFilter searches all files.
	Search(ctx context.Context, phrase, filenameFilter string, limit int) ([]domain.Passage, error)
}

// ChatSession conducts a multi-turn conversation grounded in the
// ingested documents.
type ChatSession interface {
	// Send appends a user turn, resolves any tool calls, and returns the
	// assistant's reply.
	Send(ctx context.Context, text string) (string, error)
}
