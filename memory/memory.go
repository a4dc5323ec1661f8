package memory

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyInput is returned by embedders when the input text is blank
// after trimming.
var ErrEmptyInput = errors.New("memory: input text is empty")

// Record is the logical memory entry, assembled on read by decrypting
// its stored ciphertext. It is never persisted as one blob.
type Record struct {
	// ID is the opaque unique identifier, generated at creation.
	ID string

	// Text is the user-supplied content. Never empty after trimming,
	// and never persisted unencrypted.
	Text string

	// Tags is the normalized tag set: lowercase, trimmed, deduplicated.
	Tags []string

	// Owner identifies the submitting user. Every access check
	// compares against it.
	Owner string

	// CreatedAt is fixed at creation (server clock, UTC).
	CreatedAt time.Time

	// Metadata holds caller-supplied keys only; the reserved keys
	// (owner, tags, timestamp) are carried out-of-band.
	Metadata Metadata
}

// SearchResult is one ranked hit from Pipeline.Search.
type SearchResult struct {
	ID         string
	Text       string
	Tags       []string
	CreatedAt  time.Time
	Similarity float64 // in [0, 1], rounded to 4 decimals
	Metadata   Metadata
}

// Hit is one raw nearest-neighbor match returned by an Index.
// Distance is engine-defined: a value that grows with dissimilarity.
// The pipeline converts it via similarity = 1 - min(distance, 1).
type Hit struct {
	ID         string
	Distance   float64
	Ciphertext string
	Metadata   map[string]string
}

// Entry is the stored form of one record as the Index holds it.
type Entry struct {
	Ciphertext string
	Metadata   map[string]string
}

// Index is the vector storage backend.
// Implementations: chromem.Index (embedded store). Metadata values must
// be pre-serialized to flat strings by the caller; initialization is
// idempotent and creates the backing collection on first use.
type Index interface {
	// Put upserts one entry.
	Put(ctx context.Context, id string, embedding []float32, ciphertext string, metadata map[string]string) error

	// Query returns up to k nearest neighbors, optionally restricted
	// to entries whose metadata matches every key in filter.
	Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error)

	// GetByID returns the stored entry, or nil if absent.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// DeleteByID removes an entry, reporting whether a removal happened.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// Count returns the total number of stored entries.
	Count(ctx context.Context) (int, error)

	// Close releases resources.
	Close() error
}

// Embedder converts text to fixed-dimension vectors.
// Implementations: onnx.Embedder (local model), cached.Embedder
// (ristretto read-through), mock.Embedder (testing).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	// Blank input yields ErrEmptyInput.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds several texts. Blank items are dropped rather
	// than failing the batch; ErrEmptyInput is returned only when no
	// valid item remains.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Stats is the aggregate diagnostic snapshot returned by
// Pipeline.Stats. Failures in the underlying count populate Error
// instead of propagating.
type Stats struct {
	TotalMemories      int    `json:"total_memories"`
	CollectionName     string `json:"collection_name"`
	EmbeddingModel     string `json:"embedding_model"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	EncryptionEnabled  bool   `json:"encryption_enabled"`
	Error              string `json:"error,omitempty"`
}
