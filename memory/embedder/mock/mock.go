// Package mock provides a deterministic embedder for tests and
// offline development. No model files are required.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/memorylink/memorylink/memory"
)

// Embedder generates deterministic embeddings from text hashes.
// Each token contributes a pseudo-random direction, so texts sharing
// tokens score measurably higher than unrelated texts. That is enough
// for exercising ranking and thresholds, not real semantics.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with all-MiniLM-L6-v2 dimensions.
func New() *Embedder {
	return &Embedder{dimensions: 384}
}

// Embed creates a deterministic unit-vector embedding from text.
func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, memory.ErrEmptyInput
	}

	embedding := make([]float32, m.dimensions)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		seed := h.Sum64()

		// LCG stream per token; shared tokens add identical directions.
		for i := 0; i < m.dimensions; i++ {
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return normalize(embedding), nil
}

// EmbedBatch embeds each text, dropping blank items. It fails only
// when no valid item remains.
func (m *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		embedding, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, embedding)
	}
	if len(out) == 0 {
		return nil, memory.ErrEmptyInput
	}
	return out, nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

// normalize converts the embedding to a unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
