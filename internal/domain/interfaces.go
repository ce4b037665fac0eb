package domain

import (
	"context"
	"errors"
)

// Vector is a fixed-dimension embedding produced by an Embedder.
type Vector []float32

// Document represents a single text file loaded into the system.
type Document struct {
	ID      string
	Source  string
	Path    string
	Content string
}

// Chunk is a bounded slice of a document used as the unit of embedding and retrieval.
// Start and End are rune offsets into the document content.
type Chunk struct {
	DocumentID string
	Source     string
	Index      int
	Text       string
	Start      int
	End        int
	Hash       string
}

// Entry is a persisted (chunk, vector) pair. Seq is the insertion order assigned by the store.
type Entry struct {
	Seq    int64
	Chunk  Chunk
	Vector Vector
}

// SearchResult represents a matching entry with its distance to the query (smaller is closer).
type SearchResult struct {
	Entry    Entry
	Distance float64
}

var (
	ErrDimensionMismatch  = errors.New("vector dimension mismatch")
	ErrEmbedderMismatch   = errors.New("index was built with a different embedder")
	ErrInvalidChunkConfig = errors.New("invalid chunk configuration")
)

// Embedder converts free text into a numeric vector representation.
// The same text under the same model always yields the same vector.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) (Vector, error)
	EmbedBatch(ctx context.Context, texts []string) ([]Vector, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Retriever finds the entries nearest to a query vector.
type Retriever interface {
	Query(ctx context.Context, vector Vector, topK int) ([]SearchResult, error)
}

// VectorStore is an append-only persistent similarity index.
type VectorStore interface {
	Retriever
	Add(ctx context.Context, entries []Entry) error
	Count(ctx context.Context) (int, error)
	Hashes(ctx context.Context) (map[string]struct{}, error)
	Close() error
}

// Generator produces answer text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
