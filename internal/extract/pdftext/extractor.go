// Package pdftext extracts page text from PDF files using the
// pdftotext tool from poppler-utils.
package pdftext

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
)

// ErrPDFToolNotFound is returned when pdftotext is not installed.
var ErrPDFToolNotFound = fmt.Errorf("%w: pdftotext not found in PATH", domain.ErrExtractorNotFound)

// CommandRunner executes external commands. It exists so tests can
// substitute a mock for the real pdftotext binary.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands through os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor implements driven.TextExtractor for PDF files.
type Extractor struct {
	runner CommandRunner
}

var _ driven.TextExtractor = (*Extractor)(nil)

// New creates a PDF extractor using the system pdftotext binary.
func New() *Extractor {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// CheckAvailable reports whether pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath("pdftotext"); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns platform hints for installing pdftotext.
func InstallInstructions() string {
	return `pdftotext is required for PDF extraction.

Install it with:
  macOS:         brew install poppler
  Debian/Ubuntu: sudo apt install poppler-utils
  Fedora:        sudo dnf install poppler-utils`
}

// Extract runs pdftotext and splits its output into pages. pdftotext
// terminates each page with a form feed, so page numbers follow the
// physical page order starting at 1. Blank pages are dropped but do
// not shift the numbering of the pages after them.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", domain.ErrInvalidInput)
	}

	output, err := e.runner.Run(ctx, "pdftotext", "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, fmt.Errorf("pdftotext failed for %s: %w", path, err)
	}

	raw := strings.Split(string(output), "\f")
	var pages []domain.Page //nolint:prealloc // blank pages are dropped
	for i, text := range raw {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, domain.Page{
			Number: i + 1,
			Text:   text,
		})
	}

	return pages, nil
}
