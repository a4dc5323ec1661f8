// Package cached wraps any embedder with a ristretto read-through
// cache. Embedding the same text twice costs one model invocation;
// repeated queries and re-added texts hit the cache instead.
package cached

import (
	"context"
	"fmt"
	"strings"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/errgroup"

	"github.com/memorylink/memorylink/memory"
)

// batchParallelism bounds concurrent inner Embed calls during a batch.
const batchParallelism = 4

// Embedder is a caching decorator around another memory.Embedder.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache sized for roughly maxEntries vectors.
func New(inner memory.Embedder, maxEntries int64) (*Embedder, error) {
	if maxEntries < 1 {
		maxEntries = 1
	}

	vectorCost := int64(inner.Dimensions() * 4)
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries * vectorCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding on miss.
// Callers must not mutate the returned slice.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, memory.ErrEmptyInput
	}

	if v, ok := e.cache.Get(text); ok {
		return v.([]float32), nil
	}

	embedding, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embedding, int64(len(embedding)*4))
	// Ristretto applies Sets asynchronously; wait so the next call
	// for the same text hits.
	e.cache.Wait()
	return embedding, nil
}

// EmbedBatch embeds each text, dropping blank items and failing only
// when none remain. Cache misses are embedded concurrently with
// bounded parallelism.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	valid := make([]string, 0, len(texts))
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if text != "" {
			valid = append(valid, text)
		}
	}
	if len(valid) == 0 {
		return nil, memory.ErrEmptyInput
	}

	out := make([][]float32, len(valid))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)
	for i, text := range valid {
		if v, ok := e.cache.Get(text); ok {
			out[i] = v.([]float32)
			continue
		}
		g.Go(func() error {
			embedding, err := e.inner.Embed(ctx, text)
			if err != nil {
				return err
			}
			e.cache.Set(text, embedding, int64(len(embedding)*4))
			out[i] = embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	e.cache.Wait()
	return out, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}
