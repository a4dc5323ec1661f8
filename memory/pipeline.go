package memory

import (
	"context"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/memorylink/memorylink/memory/cipher"
)

// Config holds Pipeline configuration.
type Config struct {
	// EmbeddingModel is the model identifier reported by Stats.
	EmbeddingModel string

	// CollectionName is the index collection name reported by Stats.
	CollectionName string

	// DefaultLimit caps Search results when a request leaves Limit unset.
	// Default: 10
	DefaultLimit int

	// MaxLimit is the hard ceiling on requested result counts.
	// Default: 100
	MaxLimit int

	// MaxTextLength rejects oversized submissions.
	// Default: 10000
	MaxTextLength int
}

// DefaultConfig returns the defaults used when NewPipeline receives a
// nil config.
var DefaultConfig = &Config{
	EmbeddingModel: "all-MiniLM-L6-v2",
	CollectionName: "memory_embeddings",
	DefaultLimit:   10,
	MaxLimit:       100,
	MaxTextLength:  10000,
}

// AddRequest is the input to Pipeline.Add.
type AddRequest struct {
	Text     string
	Tags     []string
	Owner    string
	Metadata Metadata
}

// SearchRequest is the input to Pipeline.Search.
type SearchRequest struct {
	Query string
	Owner string

	// Limit caps the result count; 0 means the configured default.
	Limit int

	// MinSimilarity drops hits scoring below it.
	MinSimilarity float64

	// Tags keeps only records carrying at least one of the requested
	// tags (OR semantics). Empty means no tag filtering.
	Tags []string
}

// Pipeline composes an Index, an Embedder, and a cipher suite into the
// memory lifecycle operations. It holds no mutable state of its own;
// concurrent calls are safe as long as the collaborators are.
type Pipeline struct {
	index    Index
	embedder Embedder
	suite    *cipher.Suite
	config   *Config

	now   func() time.Time
	newID func() string
}

// NewPipeline creates a Pipeline. A nil config selects DefaultConfig.
func NewPipeline(index Index, embedder Embedder, suite *cipher.Suite, config *Config) *Pipeline {
	if config == nil {
		config = DefaultConfig
	}
	return &Pipeline{
		index:    index,
		embedder: embedder,
		suite:    suite,
		config:   config,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    func() string { return uuid.NewString() },
	}
}

// Add embeds, encrypts, and persists one memory. Nothing is persisted
// until the final index write, so a failure anywhere leaves the index
// untouched. The returned record carries the original plaintext; it is
// not re-read from the index.
//
// Caller metadata must not use the reserved keys owner, tags, or
// timestamp; if it does, the pipeline-assigned values win.
func (p *Pipeline) Add(ctx context.Context, req AddRequest) (*Record, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if p.config.MaxTextLength > 0 && len(text) > p.config.MaxTextLength {
		return nil, &ValidationError{Field: "text", Reason: "exceeds maximum length"}
	}

	tags := NormalizeTags(req.Tags)
	id := p.newID()
	createdAt := p.now()

	embedding, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return nil, &StorageError{Op: "add memory", Err: err}
	}

	ciphertext, err := p.suite.Encrypt(text)
	if err != nil {
		return nil, &StorageError{Op: "add memory", Err: err}
	}

	stored := encodeStoredMetadata(req.Owner, tags, createdAt, req.Metadata)
	if err := p.index.Put(ctx, id, embedding, ciphertext, stored); err != nil {
		return nil, &StorageError{Op: "add memory", Err: err}
	}

	log.Printf("[MEMORY] Added memory %s for owner=%s (%d tags)", id, req.Owner, len(tags))

	return &Record{
		ID:        id,
		Text:      text,
		Tags:      tags,
		Owner:     req.Owner,
		CreatedAt: createdAt,
		Metadata:  callerOnly(req.Metadata),
	}, nil
}

// Search embeds the query, fetches nearest neighbors scoped to the
// owner, and converts surviving candidates into decrypted results.
// A single record that fails to decrypt is skipped, never fatal;
// embedder or index failures abort the whole search.
//
// Callers must not assume len(results) == limit: filtering and skipped
// records shrink the set without padding.
func (p *Pipeline) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, &ValidationError{Field: "query", Reason: "must not be empty"}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = p.config.DefaultLimit
	}
	if p.config.MaxLimit > 0 && limit > p.config.MaxLimit {
		limit = p.config.MaxLimit
	}

	queryEmbedding, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &StorageError{Op: "search memories", Err: err}
	}

	// Over-fetch by 2x to leave room for similarity and tag filtering
	// before truncation.
	hits, err := p.index.Query(ctx, queryEmbedding, 2*limit, map[string]string{metaKeyOwner: req.Owner})
	if err != nil {
		return nil, &StorageError{Op: "search memories", Err: err}
	}

	tagFilter := NormalizeTags(req.Tags)

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		similarity := similarityFromDistance(hit.Distance)
		if similarity < req.MinSimilarity {
			continue
		}

		tags := deserializeTags(hit.Metadata[metaKeyTags])
		if len(tagFilter) > 0 && !anyTagMatches(tags, tagFilter) {
			continue
		}

		result, err := p.convertHit(hit, similarity, tags)
		if err != nil {
			// One corrupted record must not fail the entire search.
			log.Printf("[MEMORY] Skipping result %s: %v", hit.ID, err)
			continue
		}
		results = append(results, result)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if len(results) > limit {
		results = results[:limit]
	}
	for i := range results {
		results[i].Similarity = roundScore(results[i].Similarity)
	}

	log.Printf("[MEMORY] Search for owner=%s returned %d results (query=%q)",
		req.Owner, len(results), truncateLog(query, 50))
	return results, nil
}

// convertHit decrypts one candidate and assembles its result. Any
// failure makes the candidate unusable; the caller decides whether
// that is fatal.
func (p *Pipeline) convertHit(hit Hit, similarity float64, tags []string) (SearchResult, error) {
	text, err := p.suite.Decrypt(hit.Ciphertext)
	if err != nil {
		return SearchResult{}, err
	}

	createdAt, err := time.Parse(time.RFC3339Nano, hit.Metadata[metaKeyTimestamp])
	if err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		ID:         hit.ID,
		Text:       text,
		Tags:       tags,
		CreatedAt:  createdAt,
		Similarity: similarity,
		Metadata:   decodeCallerMetadata(hit.Metadata),
	}, nil
}

// Get returns the record, or nil when it does not exist, belongs to a
// different owner, or cannot be read. The three cases are deliberately
// indistinguishable to the caller so that existence of another user's
// record never leaks.
func (p *Pipeline) Get(ctx context.Context, id, owner string) (*Record, error) {
	outcome := p.lookup(ctx, id, owner)
	if outcome.status != lookupFound {
		return nil, nil
	}
	return outcome.record, nil
}

// Delete removes the record after the same ownership and existence
// check Get performs. Returns false when there was nothing to delete.
func (p *Pipeline) Delete(ctx context.Context, id, owner string) (bool, error) {
	outcome := p.lookup(ctx, id, owner)
	if outcome.status != lookupFound {
		return false, nil
	}

	deleted, err := p.index.DeleteByID(ctx, id)
	if err != nil {
		return false, &StorageError{Op: "delete memory", Err: err}
	}
	if deleted {
		log.Printf("[MEMORY] Deleted memory %s for owner=%s", id, owner)
	}
	return deleted, nil
}

// Stats reports aggregate counts and configuration. A failing count
// populates the Error field instead of propagating: this is a
// non-critical diagnostic surface.
func (p *Pipeline) Stats(ctx context.Context) Stats {
	stats := Stats{
		CollectionName:     p.config.CollectionName,
		EmbeddingModel:     p.config.EmbeddingModel,
		EmbeddingDimension: p.embedder.Dimensions(),
		EncryptionEnabled:  true,
	}

	count, err := p.index.Count(ctx)
	if err != nil {
		stats.Error = err.Error()
		return stats
	}
	stats.TotalMemories = count
	return stats
}

// lookupStatus distinguishes why a single-record lookup produced no
// record. The distinction stays internal: Get and Delete collapse
// everything but lookupFound into "absent".
type lookupStatus int

const (
	lookupFound lookupStatus = iota
	lookupNotFound
	lookupDenied
	lookupUnreadable
)

type lookupOutcome struct {
	status lookupStatus
	record *Record
}

// lookup fetches, ownership-checks, and decrypts one record.
func (p *Pipeline) lookup(ctx context.Context, id, owner string) lookupOutcome {
	entry, err := p.index.GetByID(ctx, id)
	if err != nil {
		log.Printf("[MEMORY] Failed to fetch memory %s: %v", id, err)
		return lookupOutcome{status: lookupUnreadable}
	}
	if entry == nil {
		return lookupOutcome{status: lookupNotFound}
	}

	if entry.Metadata[metaKeyOwner] != owner {
		log.Printf("[MEMORY] Owner %s attempted to access memory %s owned by %s",
			owner, id, entry.Metadata[metaKeyOwner])
		return lookupOutcome{status: lookupDenied}
	}

	text, err := p.suite.Decrypt(entry.Ciphertext)
	if err != nil {
		log.Printf("[MEMORY] Failed to decrypt memory %s: %v", id, err)
		return lookupOutcome{status: lookupUnreadable}
	}

	createdAt, err := time.Parse(time.RFC3339Nano, entry.Metadata[metaKeyTimestamp])
	if err != nil {
		log.Printf("[MEMORY] Memory %s has unreadable timestamp: %v", id, err)
		return lookupOutcome{status: lookupUnreadable}
	}

	return lookupOutcome{
		status: lookupFound,
		record: &Record{
			ID:        id,
			Text:      text,
			Tags:      deserializeTags(entry.Metadata[metaKeyTags]),
			Owner:     owner,
			CreatedAt: createdAt,
			Metadata:  decodeCallerMetadata(entry.Metadata),
		},
	}
}

// similarityFromDistance converts an engine distance to a similarity
// in [0, 1]. Distances above 1 clamp to similarity 0.
func similarityFromDistance(distance float64) float64 {
	s := 1 - math.Min(distance, 1)
	if s > 1 {
		return 1
	}
	return s
}

// anyTagMatches reports whether any requested tag is present (OR
// semantics, not AND).
func anyTagMatches(tags, requested []string) bool {
	for _, want := range requested {
		for _, have := range tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// callerOnly copies metadata minus the reserved keys.
func callerOnly(meta Metadata) Metadata {
	out := make(Metadata, len(meta))
	for k, v := range meta {
		switch k {
		case metaKeyOwner, metaKeyTags, metaKeyTimestamp:
			continue
		}
		out[k] = v
	}
	return out
}

// roundScore rounds a similarity score to 4 decimals.
func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
