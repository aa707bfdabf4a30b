package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/docchat-cli/docchat/internal/adapters/driven/store/sqlite/migrations"
	"github.com/docchat-cli/docchat/internal/core/domain"
	"github.com/docchat-cli/docchat/internal/core/ports/driven"
)

// Store is a SQLite-backed storage that provides document and chunk
// record stores through wrapper types sharing one database file.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.docchat/data/records.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docchat", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "records.db")

	// WAL mode for better concurrency between ingest and search
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ChunkStore returns a ChunkStore interface backed by this store.
// The embedding service may be nil, in which case chunks are stored
// without vectors and Search returns domain.ErrEmbeddingUnavailable.
func (s *Store) ChunkStore(embedder driven.EmbeddingService) driven.ChunkStore {
	return &chunkStore{store: s, embedder: embedder}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// EnsureSchema re-runs pending migrations. Safe to call repeatedly.
func (s *documentStore) EnsureSchema(_ context.Context) error {
	return s.store.migrate(migrations.FS)
}

// List returns documents matching the filter in insertion order.
// A limit of zero or less returns all matches.
func (s *documentStore) List(ctx context.Context, filter driven.DocumentFilter, limit int) ([]domain.Document, error) {
	query := `
		SELECT key, source_id, document_id, version, vector
		FROM documents`
	var conditions []string
	var args []any
	if filter.SourceID != "" {
		conditions = append(conditions, "source_id = ?")
		args = append(args, filter.SourceID)
	}
	if filter.DocumentID != "" {
		conditions = append(conditions, "document_id = ?")
		args = append(args, filter.DocumentID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var doc domain.Document
		var vectorBlob []byte
		if err := rows.Scan(&doc.Key, &doc.SourceID, &doc.DocumentID, &doc.Version, &vectorBlob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Vector = bytesToFloat32Slice(vectorBlob)
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// Upsert stores or updates documents by Key.
func (s *documentStore) Upsert(ctx context.Context, docs ...domain.Document) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (key, source_id, document_id, version, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			source_id = excluded.source_id,
			document_id = excluded.document_id,
			version = excluded.version,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		vectorBlob := float32SliceToBytes(doc.Vector)
		if _, err := stmt.ExecContext(ctx, doc.Key, doc.SourceID, doc.DocumentID,
			doc.Version, vectorBlob); err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete removes documents by Key. Absent keys are ignored.
func (s *documentStore) Delete(ctx context.Context, keys ...string) error {
	return deleteByKey(ctx, s.store.db, "documents", keys)
}

// ==================== Chunk Store ====================

// chunkStore implements driven.ChunkStore. Chunk vectors are computed
// at upsert time when an embedding service is configured, and Search
// ranks all candidate rows by cosine similarity against the embedded
// search phrase.
type chunkStore struct {
	store    *Store
	embedder driven.EmbeddingService
}

var _ driven.ChunkStore = (*chunkStore)(nil)

// EnsureSchema re-runs pending migrations. Safe to call repeatedly.
func (s *chunkStore) EnsureSchema(_ context.Context) error {
	return s.store.migrate(migrations.FS)
}

// List returns chunks matching the filter in insertion order.
// A limit of zero or less returns all matches.
func (s *chunkStore) List(ctx context.Context, filter driven.ChunkFilter, limit int) ([]domain.Chunk, error) {
	query := `
		SELECT key, document_id, page_number, text, vector
		FROM chunks`
	var args []any
	if filter.DocumentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, filter.DocumentID)
	}
	query += " ORDER BY rowid"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	chunks, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Upsert stores or updates chunks by Key, embedding each chunk's Text
// when an embedding service is configured.
func (s *chunkStore) Upsert(ctx context.Context, chunks ...domain.Chunk) error {
	if s.embedder != nil {
		texts := make([]string, len(chunks))
		for i := range chunks {
			texts[i] = chunks[i].Text
		}
		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}
		for i := range chunks {
			chunks[i].Vector = vectors[i]
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (key, document_id, page_number, text, vector)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			document_id = excluded.document_id,
			page_number = excluded.page_number,
			text = excluded.text,
			vector = excluded.vector
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		vectorBlob := float32SliceToBytes(chunk.Vector)
		if _, err := stmt.ExecContext(ctx, chunk.Key, chunk.DocumentID,
			chunk.PageNumber, chunk.Text, vectorBlob); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Delete removes chunks by Key. Absent keys are ignored.
func (s *chunkStore) Delete(ctx context.Context, keys ...string) error {
	return deleteByKey(ctx, s.store.db, "chunks", keys)
}

// Search embeds the phrase and ranks matching chunks by cosine
// similarity. The scan is brute force over the candidate rows, which
// is adequate for the corpus sizes a local document folder produces.
func (s *chunkStore) Search(ctx context.Context, phrase string, filter driven.ChunkFilter, limit int) ([]driven.ChunkHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	queryVector, err := s.embedder.Embed(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("embedding search phrase: %w", err)
	}

	candidates, err := s.List(ctx, filter, 0)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.ChunkHit, 0, len(candidates))
	for _, chunk := range candidates {
		if len(chunk.Vector) == 0 {
			continue
		}
		hits = append(hits, driven.ChunkHit{
			Chunk: chunk,
			Score: cosineSimilarity(queryVector, chunk.Vector),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// ==================== Helper Functions ====================

func deleteByKey(ctx context.Context, db *sql.DB, table string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(keys))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(keys))
	for i, key := range keys {
		args[i] = key
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE key IN (%s)", table, placeholders)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("deleting from %s: %w", table, err)
	}
	return nil
}

// scanChunks scans chunk rows.
func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var vectorBlob []byte
		if err := rows.Scan(&chunk.Key, &chunk.DocumentID, &chunk.PageNumber,
			&chunk.Text, &vectorBlob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Vector = bytesToFloat32Slice(vectorBlob)
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Mismatched dimensions and zero vectors score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
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
