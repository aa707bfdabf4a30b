package driven

import (
	"context"

	"github.com/docchat-cli/docchat/internal/core/domain"
)

// TextExtractor produces ordered page text from a source file.
// Extraction failures are per-file and must not be fatal to a sync run.
type TextExtractor interface {
	// Extract returns the pages of the file at path, in order.
	// Page text is normalised to single-line paragraphs separated by
	// blank lines, the input contract of the chunk splitter.
	Extract(ctx context.Context, path string) ([]domain.Page, error)
}
