package driving

import "context"

// Ingestor synchronises the document and chunk stores with a source
// directory's current state.
type Ingestor interface {
	// Sync reconciles the stores against the files under root.
	// Per-file extraction failures are reported in the returned SyncReport;
	// store and configuration errors abort the run.
	Sync(ctx context.Context, root string) (*SyncReport, error)

	// Status returns live progress for a source while a sync is running.
	Status(ctx context.Context, sourceID string) (*SyncStatus, error)

	// SourceID derives the identifier Sync will use for the given root,
	// so callers can poll Status while a sync runs.
	SourceID(root string) string
}

// SyncReport summarises one completed sync run.
type SyncReport struct {
	// SourceID identifies the synchronised source.
	SourceID string

	// Ingested counts new or modified files whose chunks were rebuilt.
	Ingested int

	// Deleted counts documents removed because their file disappeared.
	Deleted int

	// Unchanged counts files skipped because their version matched.
	Unchanged int

	// Failed lists files that could not be processed this run.
	Failed []FileError
}

// FileError records a per-file failure that did not abort the run.
type FileError struct {
	// DocumentID is the failed file's identifier.
	DocumentID string

	// Err is the failure cause.
	Err error
}

// SyncStatus represents the current state of a sync operation.
type SyncStatus struct {
	// SourceID identifies the source.
	SourceID string

	// Running indicates if sync is currently in progress.
	Running bool

	// DocumentsProcessed is the count of files processed so far.
	DocumentsProcessed int

	// ErrorCount is the number of per-file errors encountered.
	ErrorCount int
}
