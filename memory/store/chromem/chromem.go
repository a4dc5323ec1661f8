// Package chromem adapts chromem-go, a pure Go embedded vector
// database, to the memory.Index interface.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromemgo "github.com/philippgille/chromem-go"

	"github.com/memorylink/memorylink/memory"
)

// DefaultCollection is the collection name used when Config leaves it
// empty.
const DefaultCollection = "memory_embeddings"

// Config configures the index.
type Config struct {
	// Path is the on-disk location of the database. Empty keeps
	// everything in memory (tests, ephemeral dev).
	Path string

	// Collection is the collection name. Default: DefaultCollection.
	Collection string

	// Compress enables gzip compression of persisted documents.
	Compress bool
}

// Index stores (vector, ciphertext, metadata) triples in a single
// shared chromem-go collection. Owner scoping happens through the
// metadata filter on queries, not through per-owner collections.
type Index struct {
	db   *chromemgo.DB
	name string

	mu         sync.RWMutex
	collection *chromemgo.Collection
}

// New opens or creates the database. The backing collection is created
// lazily on first use; calling New against an existing path reattaches
// to its persisted contents.
func New(cfg Config) (*Index, error) {
	var db *chromemgo.DB
	if cfg.Path != "" {
		var err error
		db, err = chromemgo.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	} else {
		db = chromemgo.NewDB()
	}

	name := cfg.Collection
	if name == "" {
		name = DefaultCollection
	}

	return &Index{db: db, name: name}, nil
}

// handle returns the collection, creating it on first use.
func (x *Index) handle() (*chromemgo.Collection, error) {
	x.mu.RLock()
	col := x.collection
	x.mu.RUnlock()
	if col != nil {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Double-check after acquiring the write lock.
	if x.collection != nil {
		return x.collection, nil
	}

	// Embeddings are always supplied by the caller, so no embedding
	// func is configured; the default is never invoked.
	col, err := x.db.GetOrCreateCollection(x.name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("get or create collection: %w", err)
	}
	x.collection = col
	return col, nil
}

// Put upserts one entry.
func (x *Index) Put(ctx context.Context, id string, embedding []float32, ciphertext string, metadata map[string]string) error {
	col, err := x.handle()
	if err != nil {
		return err
	}

	doc := chromemgo.Document{
		ID:        id,
		Content:   ciphertext,
		Embedding: embedding,
		Metadata:  metadata,
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}

	log.Printf("[CHROMEM] Stored entry %s", id)
	return nil
}

// Query returns up to k nearest neighbors matching the metadata
// filter. chromem-go reports cosine similarity; this adapter exposes
// distance = 1 - similarity so callers get the usual
// grows-with-dissimilarity contract.
func (x *Index) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]memory.Hit, error) {
	if k < 1 {
		return nil, nil
	}

	col, err := x.handle()
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	// chromem-go rejects nResults larger than the collection size.
	// The count above caps it, but a concurrent delete can still race
	// past the check, so retry with smaller limits when that happens.
	var results []chromemgo.Result
	for nResults := k; nResults >= 1; nResults-- {
		results, err = col.QueryEmbedding(ctx, embedding, nResults, filter, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if nResults == 1 {
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	hits := make([]memory.Hit, 0, len(results))
	for _, result := range results {
		hits = append(hits, memory.Hit{
			ID:         result.ID,
			Distance:   1 - float64(result.Similarity),
			Ciphertext: result.Content,
			Metadata:   result.Metadata,
		})
	}

	log.Printf("[CHROMEM] Query returned %d hits (k=%d)", len(hits), k)
	return hits, nil
}

// GetByID returns the stored entry, or nil if absent.
func (x *Index) GetByID(ctx context.Context, id string) (*memory.Entry, error) {
	col, err := x.handle()
	if err != nil {
		return nil, err
	}

	doc, err := col.GetByID(ctx, id)
	if err != nil {
		// chromem-go signals absence through an error rather than a
		// sentinel, so match on the message.
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}

	return &memory.Entry{
		Ciphertext: doc.Content,
		Metadata:   doc.Metadata,
	}, nil
}

// DeleteByID removes an entry, reporting whether it existed.
func (x *Index) DeleteByID(ctx context.Context, id string) (bool, error) {
	col, err := x.handle()
	if err != nil {
		return false, err
	}

	// chromem-go's Delete ignores unknown IDs, so check existence
	// first to keep the success boolean meaningful.
	if _, err := col.GetByID(ctx, id); err != nil {
		if strings.Contains(err.Error(), "not found") {
			return false, nil
		}
		return false, fmt.Errorf("get by id: %w", err)
	}

	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}

	log.Printf("[CHROMEM] Deleted entry %s", id)
	return true, nil
}

// Count returns the total number of stored entries.
func (x *Index) Count(ctx context.Context) (int, error) {
	col, err := x.handle()
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Close releases resources. chromem-go persists on every mutation, so
// nothing is flushed here.
func (x *Index) Close() error {
	return nil
}

// isInsufficientDocsError reports whether the query failed because
// nResults exceeded the collection size.
func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
