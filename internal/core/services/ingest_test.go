package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docchat-cli/docchat/internal/adapters/driven/store/memory"
	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
)

// --- Mock implementations for ingest testing ---

// mockExtractor implements driven.TextExtractor keyed by filename.
type mockExtractor struct {
	pages map[string][]domain.Page
	errs  map[string]error
	calls map[string]int
}

func newMockExtractor() *mockExtractor {
	return &mockExtractor{
		pages: make(map[string][]domain.Page),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (m *mockExtractor) Extract(_ context.Context, path string) ([]domain.Page, error) {
	name := filepath.Base(path)
	m.calls[name]++
	if err := m.errs[name]; err != nil {
		return nil, err
	}
	return m.pages[name], nil
}

// stubEmbedder implements driven.EmbeddingService with deterministic
// length-based vectors, good enough for ranking in tests.
type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text)), 1}, nil
}

func (s stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = s.Embed(ctx, t)
	}
	return out, nil
}

func (stubEmbedder) ModelName() string { return "stub" }
func (stubEmbedder) Close() error      { return nil }

// failingChunkStore wraps a chunk store and fails Upsert.
type failingChunkStore struct {
	driven.ChunkStore
	upsertErr error
}

func (f *failingChunkStore) Upsert(ctx context.Context, chunks ...domain.Chunk) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	return f.ChunkStore.Upsert(ctx, chunks...)
}

// --- Helpers ---

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func touchFile(t *testing.T, path string, at time.Time) {
	t.Helper()
	require.NoError(t, os.Chtimes(path, at, at))
}

func newTestOrchestrator(extractor driven.TextExtractor) (*IngestOrchestrator, *memory.DocumentStore, *memory.ChunkStore) {
	docs := memory.NewDocumentStore()
	chunks := memory.NewChunkStore(stubEmbedder{})
	orch := NewIngestOrchestrator(docs, chunks, extractor, WithChunkWords(5))
	return orch, docs, chunks
}

// --- Tests ---

func TestSourceID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, SourceID("/data/docs"), SourceID("/data/docs"))
	})

	t.Run("distinct roots produce distinct ids", func(t *testing.T) {
		assert.NotEqual(t, SourceID("/data/a"), SourceID("/data/b"))
	})

	t.Run("carries the source kind tag", func(t *testing.T) {
		assert.Contains(t, SourceID("/data/docs"), "pdf:")
	})
}

func TestSync_NewDocument(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.pdf", "raw bytes")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{
		{Number: 1, Text: "alpha beta gamma delta epsilon zeta eta"},
		{Number: 2, Text: "second page text"},
	}

	orch, docs, chunks := newTestOrchestrator(extractor)
	ctx := context.Background()

	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 0, report.Unchanged)
	assert.Empty(t, report.Failed)

	records, err := docs.List(ctx, driven.DocumentFilter{SourceID: SourceID(dir)}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	doc := records[0]
	assert.Equal(t, "a.pdf", doc.DocumentID)
	assert.NotEmpty(t, doc.Key)
	assert.Len(t, doc.Vector, domain.VectorPlaceholderDimensions)

	// Version must parse as the file's mtime with nanosecond precision.
	parsed, err := time.Parse(time.RFC3339Nano, doc.Version)
	require.NoError(t, err)
	info, err := os.Stat(filepath.Join(dir, "a.pdf"))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(info.ModTime().UTC()))

	stored, err := chunks.List(ctx, driven.ChunkFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, stored)

	pageNumbers := map[int]bool{}
	for _, c := range stored {
		assert.Equal(t, "a.pdf", c.DocumentID)
		assert.NotEmpty(t, c.Key)
		assert.NotEmpty(t, c.Text)
		pageNumbers[c.PageNumber] = true
	}
	assert.True(t, pageNumbers[1])
	assert.True(t, pageNumbers[2])
}

func TestSync_Idempotent(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "some page text"}}

	orch, docs, chunks := newTestOrchestrator(extractor)
	ctx := context.Background()

	_, err := orch.Sync(ctx, dir)
	require.NoError(t, err)

	docUpserts, docDeletes := docs.Writes()
	chunkUpserts, chunkDeletes := chunks.Writes()

	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Ingested)
	assert.Equal(t, 1, report.Unchanged)

	// Second run with no filesystem changes performs zero store writes.
	u, d := docs.Writes()
	assert.Equal(t, docUpserts, u)
	assert.Equal(t, docDeletes, d)
	u, d = chunks.Writes()
	assert.Equal(t, chunkUpserts, u)
	assert.Equal(t, chunkDeletes, d)

	// And no re-extraction either.
	assert.Equal(t, 1, extractor.calls["a.pdf"])
}

func TestSync_VersionChangeReplacesChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "a.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "original extraction"}}

	orch, docs, chunks := newTestOrchestrator(extractor)
	ctx := context.Background()

	_, err := orch.Sync(ctx, dir)
	require.NoError(t, err)

	before, err := docs.List(ctx, driven.DocumentFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.Len(t, before, 1)
	oldKey := before[0].Key

	oldChunks, err := chunks.List(ctx, driven.ChunkFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, oldChunks)

	// Touch the file and change what extraction produces.
	touchFile(t, path, time.Now().Add(time.Hour))
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "replacement extraction"}}

	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)

	after, err := docs.List(ctx, driven.DocumentFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.Len(t, after, 1, "exactly one live document per DocumentID")
	assert.NotEqual(t, oldKey, after[0].Key, "replacement gets a fresh Key")

	newChunks, err := chunks.List(ctx, driven.ChunkFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.Len(t, newChunks, 1)
	assert.Equal(t, "replacement extraction", newChunks[0].Text,
		"chunk set depends only on the new extraction output")
	for _, old := range oldChunks {
		for _, c := range newChunks {
			assert.NotEqual(t, old.Key, c.Key)
		}
	}
}

func TestSync_CascadeDelete(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "a.pdf", "raw")
	writeSourceFile(t, dir, "b.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "text a"}}
	extractor.pages["b.pdf"] = []domain.Page{{Number: 1, Text: "text b"}}

	orch, docs, chunks := newTestOrchestrator(extractor)
	ctx := context.Background()

	_, err := orch.Sync(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, 1, report.Unchanged)

	remaining, err := docs.List(ctx, driven.DocumentFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining, "no document records for the removed file")

	orphans, err := chunks.List(ctx, driven.ChunkFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	assert.Empty(t, orphans, "no chunk records for the removed file")

	kept, err := chunks.List(ctx, driven.ChunkFilter{DocumentID: "b.pdf"}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, kept, "unrelated documents are untouched")
}

func TestSync_ExtractionErrorIsIsolated(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "bad.pdf", "raw")
	writeSourceFile(t, dir, "good.pdf", "raw")

	extractor := newMockExtractor()
	extractor.errs["bad.pdf"] = errors.New("parse failure")
	extractor.pages["good.pdf"] = []domain.Page{{Number: 1, Text: "fine"}}

	orch, docs, _ := newTestOrchestrator(extractor)
	ctx := context.Background()

	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err, "per-file extraction failures do not abort the run")
	assert.Equal(t, 1, report.Ingested)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "bad.pdf", report.Failed[0].DocumentID)

	// The failed file leaves no record behind and is retried next run.
	records, err := docs.List(ctx, driven.DocumentFilter{DocumentID: "bad.pdf"}, 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	report, err = orch.Sync(ctx, dir)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, 2, extractor.calls["bad.pdf"], "failed file is re-attempted")
}

func TestSync_StoreErrorAbortsRun(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "text"}}

	docs := memory.NewDocumentStore()
	chunks := &failingChunkStore{
		ChunkStore: memory.NewChunkStore(stubEmbedder{}),
		upsertErr:  errors.New("disk full"),
	}
	orch := NewIngestOrchestrator(docs, chunks, extractor, WithChunkWords(5))

	_, err := orch.Sync(context.Background(), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSync_NoOrphanInvariant(t *testing.T) {
	dir := t.TempDir()
	a := writeSourceFile(t, dir, "a.pdf", "raw")
	writeSourceFile(t, dir, "b.pdf", "raw")
	writeSourceFile(t, dir, "c.pdf", "raw")

	extractor := newMockExtractor()
	for _, name := range []string{"a.pdf", "b.pdf", "c.pdf"} {
		extractor.pages[name] = []domain.Page{{Number: 1, Text: "text for " + name}}
	}

	orch, docs, chunks := newTestOrchestrator(extractor)
	ctx := context.Background()

	_, err := orch.Sync(ctx, dir)
	require.NoError(t, err)

	// Churn: delete one file, touch another, re-run.
	require.NoError(t, os.Remove(a))
	touchFile(t, filepath.Join(dir, "b.pdf"), time.Now().Add(time.Hour))

	_, err = orch.Sync(ctx, dir)
	require.NoError(t, err)

	live := map[string]bool{}
	records, err := docs.List(ctx, driven.DocumentFilter{}, 0)
	require.NoError(t, err)
	for _, doc := range records {
		live[doc.DocumentID] = true
	}

	all, err := chunks.List(ctx, driven.ChunkFilter{}, 0)
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for _, chunk := range all {
		assert.True(t, live[chunk.DocumentID],
			"chunk %s references dead document %s", chunk.Key, chunk.DocumentID)
	}
}

func TestSync_IgnoresOtherExtensionsAndDirs(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.pdf", "raw")
	writeSourceFile(t, dir, "notes.txt", "raw")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0755))
	writeSourceFile(t, filepath.Join(dir, "nested"), "deep.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "text"}}

	orch, docs, _ := newTestOrchestrator(extractor)
	ctx := context.Background()

	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)

	records, err := docs.List(ctx, driven.DocumentFilter{}, 0)
	require.NoError(t, err)
	assert.Len(t, records, 1, "scan is non-recursive and extension-scoped")
}

func TestSync_InvalidChunkWords(t *testing.T) {
	orch := NewIngestOrchestrator(
		memory.NewDocumentStore(),
		memory.NewChunkStore(nil),
		newMockExtractor(),
		WithChunkWords(0),
	)
	_, err := orch.Sync(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidChunkSize)
}

func TestSync_MissingRoot(t *testing.T) {
	orch, _, _ := newTestOrchestrator(newMockExtractor())
	_, err := orch.Sync(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestStatus_Idle(t *testing.T) {
	orch, _, _ := newTestOrchestrator(newMockExtractor())
	status, err := orch.Status(context.Background(), "pdf:/nowhere")
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Equal(t, 0, status.DocumentsProcessed)
}

// TestSync_Lifecycle walks the full a.pdf scenario: create, no-op re-run,
// modify, delete.
func TestSync_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	path := writeSourceFile(t, dir, "a.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.pdf"] = []domain.Page{{Number: 1, Text: "first version text"}}

	orch, docs, chunks := newTestOrchestrator(extractor)
	ctx := context.Background()

	// Unseen file: document + chunks created.
	report, err := orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)

	records, err := docs.List(ctx, driven.DocumentFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	firstKey := records[0].Key

	// No changes: zero new writes.
	u1, _ := docs.Writes()
	report, err = orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unchanged)
	u2, _ := docs.Writes()
	assert.Equal(t, u1, u2)

	// Touched: new Key, chunks replaced.
	touchFile(t, path, time.Now().Add(time.Hour))
	report, err = orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)

	records, err = docs.List(ctx, driven.DocumentFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotEqual(t, firstKey, records[0].Key)

	// Removed from disk: document and chunks gone.
	require.NoError(t, os.Remove(path))
	report, err = orch.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)

	records, err = docs.List(ctx, driven.DocumentFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
	remaining, err := chunks.List(ctx, driven.ChunkFilter{DocumentID: "a.pdf"}, 0)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestWithExtension(t *testing.T) {
	dir := t.TempDir()
	writeSourceFile(t, dir, "a.txt", "raw")
	writeSourceFile(t, dir, "b.pdf", "raw")

	extractor := newMockExtractor()
	extractor.pages["a.txt"] = []domain.Page{{Number: 1, Text: "text"}}

	orch := NewIngestOrchestrator(
		memory.NewDocumentStore(),
		memory.NewChunkStore(stubEmbedder{}),
		extractor,
		WithExtension("txt"),
		WithChunkWords(5),
	)

	report, err := orch.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, extractor.calls["a.txt"])
	assert.Zero(t, extractor.calls["b.pdf"])
}
