package mock

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/memorylink/memorylink/memory"
)

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestEmbedDeterministic(t *testing.T) {
	m := New()
	ctx := context.Background()

	a, err := m.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := m.Embed(ctx, "the quick brown fox")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embeddings differ at index %d", i)
		}
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	m := New()

	emb, err := m.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(emb) != 384 {
		t.Fatalf("got %d dimensions, want 384", len(emb))
	}

	var norm float64
	for _, v := range emb {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-4 {
		t.Errorf("squared norm = %v, want 1", norm)
	}
}

func TestEmbedTokenOverlapRaisesSimilarity(t *testing.T) {
	m := New()
	ctx := context.Background()

	base, err := m.Embed(ctx, "buy milk at the store")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	similar, err := m.Embed(ctx, "buy milk at the market")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	unrelated, err := m.Embed(ctx, "quarterly revenue projections spreadsheet")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	simOverlap := cosine(base, similar)
	simUnrelated := cosine(base, unrelated)
	if simOverlap <= simUnrelated {
		t.Errorf("overlapping text scored %v, unrelated %v; overlap should rank higher",
			simOverlap, simUnrelated)
	}
}

func TestEmbedCaseAndWhitespaceInsensitive(t *testing.T) {
	m := New()
	ctx := context.Background()

	a, err := m.Embed(ctx, "Hello World")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := m.Embed(ctx, "  hello   world  ")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if sim := cosine(a, b); math.Abs(sim-1) > 1e-4 {
		t.Errorf("case/whitespace variants scored %v, want 1", sim)
	}
}

func TestEmbedRejectsBlank(t *testing.T) {
	m := New()

	if _, err := m.Embed(context.Background(), "   "); !errors.Is(err, memory.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEmbedBatch(t *testing.T) {
	m := New()
	ctx := context.Background()

	vectors, err := m.EmbedBatch(ctx, []string{"one", "", "two", "  "})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}

	if _, err := m.EmbedBatch(ctx, []string{"", "   "}); !errors.Is(err, memory.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for all-blank batch, got %v", err)
	}
}
