package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
	"github.com/docchat-cli/docchat/internal/core/ports/driving"
	"github.com/docchat-cli/docchat/internal/logger"
	"github.com/docchat-cli/docchat/internal/splitter"
)

// Ensure IngestOrchestrator implements the interface.
var _ driving.Ingestor = (*IngestOrchestrator)(nil)

// sourceKind tags filesystem PDF sources so multiple source kinds can share
// one store without DocumentID collisions.
const sourceKind = "pdf"

// IngestOrchestrator keeps the document and chunk stores synchronised with
// a source directory. Documents are matched across runs by DocumentID
// (filename) and replaced wholesale when their version (mtime) changes.
type IngestOrchestrator struct {
	docStore   driven.DocumentStore
	chunkStore driven.ChunkStore
	extractor  driven.TextExtractor
	extension  string
	chunkWords int

	// Status tracking
	mu          sync.RWMutex
	activeSyncs map[string]*driving.SyncStatus
}

// IngestOption configures the orchestrator.
type IngestOption func(*IngestOrchestrator)

// WithExtension sets the source file extension to ingest (default ".pdf").
func WithExtension(ext string) IngestOption {
	return func(o *IngestOrchestrator) {
		if ext != "" {
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			o.extension = ext
		}
	}
}

// WithChunkWords sets the passage size budget in words.
func WithChunkWords(words int) IngestOption {
	return func(o *IngestOrchestrator) {
		o.chunkWords = words
	}
}

// NewIngestOrchestrator creates a new ingestion orchestrator.
func NewIngestOrchestrator(
	docStore driven.DocumentStore,
	chunkStore driven.ChunkStore,
	extractor driven.TextExtractor,
	opts ...IngestOption,
) *IngestOrchestrator {
	o := &IngestOrchestrator{
		docStore:    docStore,
		chunkStore:  chunkStore,
		extractor:   extractor,
		extension:   ".pdf",
		chunkWords:  splitter.DefaultMaxWords,
		activeSyncs: make(map[string]*driving.SyncStatus),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SourceID derives the store-scoping identifier for a source root.
// It is deterministic so repeated runs over the same directory address the
// same records.
func SourceID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	return sourceKind + ":" + filepath.Clean(abs)
}

// Sync reconciles the stores against the files currently under root.
//
// Per run: files that disappeared are cascade-deleted (chunks before
// document), unchanged files are skipped entirely, and new or modified files
// have their full chunk set re-derived from fresh extraction. Extraction
// failures are isolated per file; store failures abort the run.
func (o *IngestOrchestrator) Sync(ctx context.Context, root string) (*driving.SyncReport, error) {
	if o.chunkWords <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidChunkSize, o.chunkWords)
	}

	sourceID := SourceID(root)
	report := &driving.SyncReport{SourceID: sourceID}

	currentFiles, err := o.listSourceFiles(root)
	if err != nil {
		return nil, fmt.Errorf("list source files: %w", err)
	}

	existing, err := o.docStore.List(ctx, driven.DocumentFilter{SourceID: sourceID}, 0)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	status := &driving.SyncStatus{SourceID: sourceID, Running: true}
	o.setStatus(sourceID, status)
	defer o.clearStatus(sourceID)

	logger.Info("Starting sync for source %s (%d files, %d records)",
		sourceID, len(currentFiles), len(existing))

	// Deletion set: records whose file no longer exists.
	for i := range existing {
		if _, ok := currentFiles[existing[i].DocumentID]; ok {
			continue
		}
		if err := o.deleteDocument(ctx, &existing[i]); err != nil {
			return nil, err
		}
		report.Deleted++
	}

	byDocumentID := make(map[string]*domain.Document, len(existing))
	for i := range existing {
		byDocumentID[existing[i].DocumentID] = &existing[i]
	}

	// Modified-or-new set: unchanged files are skipped with zero writes.
	for _, documentID := range sortedIDs(currentFiles) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := currentFiles[documentID]
		version, err := fileVersion(path)
		if err != nil {
			report.Failed = append(report.Failed, driving.FileError{DocumentID: documentID, Err: err})
			o.bumpErrors(status)
			continue
		}

		existingDoc := byDocumentID[documentID]
		if existingDoc != nil && existingDoc.Version == version {
			report.Unchanged++
			continue
		}

		if err := o.ingestFile(ctx, sourceID, documentID, path, version, existingDoc); err != nil {
			// Extraction and splitting failures are per-file: the record is
			// left in its previous state and retried next run. Store
			// failures abort the run.
			if isFileError(err) {
				logger.Warn("Skipping %s: %v", documentID, err)
				report.Failed = append(report.Failed, driving.FileError{DocumentID: documentID, Err: err})
				o.bumpErrors(status)
				continue
			}
			return nil, err
		}

		report.Ingested++
		o.mu.Lock()
		status.DocumentsProcessed++
		o.mu.Unlock()
	}

	logger.Info("Sync complete: %d ingested, %d deleted, %d unchanged, %d errors",
		report.Ingested, report.Deleted, report.Unchanged, len(report.Failed))
	return report, nil
}

// Status returns sync status for a source.
func (o *IngestOrchestrator) Status(_ context.Context, sourceID string) (*driving.SyncStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if status, ok := o.activeSyncs[sourceID]; ok {
		// Return a copy to avoid race conditions
		return &driving.SyncStatus{
			SourceID:           status.SourceID,
			Running:            status.Running,
			DocumentsProcessed: status.DocumentsProcessed,
			ErrorCount:         status.ErrorCount,
		}, nil
	}

	return &driving.SyncStatus{SourceID: sourceID, Running: false}, nil
}

// SourceID derives the identifier Sync will use for the given root.
func (o *IngestOrchestrator) SourceID(root string) string {
	return SourceID(root)
}

// ingestFile replaces one document and its chunk set.
//
// Ordering matters: old chunks are deleted first, then the old document row,
// then the new row is upserted and the fresh chunk batch written. An
// interruption can leave a stale or missing document row but never orphaned
// chunks, and the version check retries the file next run.
func (o *IngestOrchestrator) ingestFile(
	ctx context.Context,
	sourceID, documentID, path, version string,
	existingDoc *domain.Document,
) error {
	// Extract before touching the stores so a parse failure leaves the
	// previous state untouched.
	pages, err := o.extractor.Extract(ctx, path)
	if err != nil {
		return &fileError{fmt.Errorf("extract: %w", err)}
	}

	var newChunks []domain.Chunk
	for _, page := range pages {
		passages, err := splitter.Split(page.Text, o.chunkWords)
		if err != nil {
			return fmt.Errorf("split page %d: %w", page.Number, err)
		}
		for _, text := range passages {
			newChunks = append(newChunks, domain.Chunk{
				Key:        uuid.New().String(),
				DocumentID: documentID,
				PageNumber: page.Number,
				Text:       text,
			})
		}
	}

	if existingDoc != nil {
		oldChunks, err := o.chunkStore.List(ctx, driven.ChunkFilter{DocumentID: documentID}, 0)
		if err != nil {
			return fmt.Errorf("list old chunks: %w", err)
		}
		if len(oldChunks) > 0 {
			if err := o.chunkStore.Delete(ctx, chunkKeys(oldChunks)...); err != nil {
				return fmt.Errorf("delete old chunks: %w", err)
			}
		}
		// The new row gets a fresh Key, so upsert semantics would not
		// replace the old one. Delete it explicitly.
		if err := o.docStore.Delete(ctx, existingDoc.Key); err != nil {
			return fmt.Errorf("delete old document: %w", err)
		}
	}

	logger.Info("Ingesting: %s (%d pages, %d chunks)", documentID, len(pages), len(newChunks))

	doc := domain.Document{
		Key:        uuid.New().String(),
		SourceID:   sourceID,
		DocumentID: documentID,
		Version:    version,
		Vector:     domain.PlaceholderVector(),
	}
	if err := o.docStore.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}

	if len(newChunks) > 0 {
		if err := o.chunkStore.Upsert(ctx, newChunks...); err != nil {
			return fmt.Errorf("upsert chunks: %w", err)
		}
	}

	return nil
}

// deleteDocument cascade-deletes a document: chunks first, then the record,
// so an interruption between the two cannot leave orphaned chunks.
func (o *IngestOrchestrator) deleteDocument(ctx context.Context, doc *domain.Document) error {
	logger.Info("Deleting: %s", doc.DocumentID)

	chunks, err := o.chunkStore.List(ctx, driven.ChunkFilter{DocumentID: doc.DocumentID}, 0)
	if err != nil {
		return fmt.Errorf("list chunks for %s: %w", doc.DocumentID, err)
	}
	if len(chunks) > 0 {
		if err := o.chunkStore.Delete(ctx, chunkKeys(chunks)...); err != nil {
			return fmt.Errorf("delete chunks for %s: %w", doc.DocumentID, err)
		}
	}
	if err := o.docStore.Delete(ctx, doc.Key); err != nil {
		return fmt.Errorf("delete document %s: %w", doc.DocumentID, err)
	}
	return nil
}

// listSourceFiles maps DocumentID (filename) to path for files directly
// under root with the expected extension. The scan is non-recursive.
func (o *IngestOrchestrator) listSourceFiles(root string) (map[string]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	files := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), o.extension) {
			continue
		}
		files[name] = filepath.Join(root, name)
	}
	return files, nil
}

// fileVersion formats the file's last-modified instant with enough
// precision that any real edit changes the string.
func fileVersion(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return info.ModTime().UTC().Format(time.RFC3339Nano), nil
}

func chunkKeys(chunks []domain.Chunk) []string {
	keys := make([]string, len(chunks))
	for i := range chunks {
		keys[i] = chunks[i].Key
	}
	return keys
}

// sortedIDs returns map keys in lexical order so processing is
// deterministic across runs.
func sortedIDs(files map[string]string) []string {
	ids := make([]string, 0, len(files))
	for id := range files {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// fileError marks a failure as per-file rather than run-fatal.
type fileError struct {
	err error
}

func (e *fileError) Error() string { return e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

func isFileError(err error) bool {
	var fe *fileError
	return errors.As(err, &fe)
}

func (o *IngestOrchestrator) setStatus(sourceID string, status *driving.SyncStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.activeSyncs[sourceID] = status
}

func (o *IngestOrchestrator) clearStatus(sourceID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.activeSyncs, sourceID)
}

func (o *IngestOrchestrator) bumpErrors(status *driving.SyncStatus) {
	o.mu.Lock()
	status.ErrorCount++
	o.mu.Unlock()
}
