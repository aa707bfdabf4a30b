package domain

// VectorPlaceholderDimensions is the dimension of the placeholder vector
// stored on document records. Some vector stores require every record to
// carry a vector; documents get a fixed zero vector of this size.
const VectorPlaceholderDimensions = 2

// Document represents one ingested source file.
// Identity across runs is carried by DocumentID; Key changes on every
// re-ingestion and is never reused.
type Document struct {
	// Key is the opaque unique identifier, generated on creation.
	Key string

	// SourceID identifies the ingestion source (e.g. a tagged directory path).
	SourceID string

	// DocumentID is the stable identifier of the underlying file (its
	// filename within the source root). Used for matching across runs.
	DocumentID string

	// Version captures the file's last-modified instant as an ISO-8601
	// string. Used purely for change detection, not ordering.
	Version string

	// Vector is a fixed-size placeholder required by the store schema.
	// It carries no meaning for documents.
	Vector []float32
}

// PlaceholderVector returns the zero vector stored on document records.
func PlaceholderVector() []float32 {
	return make([]float32, VectorPlaceholderDimensions)
}

// Chunk is one bounded-size text passage derived from a document page.
// Chunks are the unit retrieved by similarity search.
type Chunk struct {
	// Key is the opaque unique identifier, generated on creation.
	Key string

	// DocumentID references the owning document's DocumentID (not its Key).
	DocumentID string

	// PageNumber is the 1-based page index within the source document.
	PageNumber int

	// Text is the passage content.
	Text string

	// Vector is the embedding of Text, produced by the embedding service
	// at store-write time.
	Vector []float32
}

// Page is one page of extracted text from a source file.
// Text is normalised to single-line paragraphs separated by blank lines.
type Page struct {
	// Number is the 1-based page index.
	Number int

	// Text is the extracted plain text.
	Text string
}

// Passage is a citation-ready retrieval result.
type Passage struct {
	// Filename is the owning document's DocumentID.
	Filename string

	// PageNumber is the page the passage came from.
	PageNumber int

	// Text is the passage content.
	Text string

	// Score is the similarity score reported by the store.
	Score float64
}
