package cached

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/memorylink/memorylink/memory"
	"github.com/memorylink/memorylink/memory/embedder/mock"
)

// countingEmbedder counts how many times the wrapped model is invoked.
type countingEmbedder struct {
	inner memory.Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

func TestEmbedCachesRepeatedText(t *testing.T) {
	counter := &countingEmbedder{inner: mock.New()}
	e, err := New(counter, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	first, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	second, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if got := counter.calls.Load(); got != 1 {
		t.Errorf("inner embedder called %d times, want 1", got)
	}
	if len(first) != len(second) {
		t.Fatalf("vector lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs at index %d", i)
		}
	}
}

func TestEmbedNormalizesWhitespaceKeys(t *testing.T) {
	counter := &countingEmbedder{inner: mock.New()}
	e, err := New(counter, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := e.Embed(ctx, "hello"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := e.Embed(ctx, "  hello  "); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	if got := counter.calls.Load(); got != 1 {
		t.Errorf("inner embedder called %d times, want 1", got)
	}
}

func TestEmbedRejectsBlank(t *testing.T) {
	e, err := New(mock.New(), 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.Embed(context.Background(), "   "); !errors.Is(err, memory.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEmbedBatchDropsBlanks(t *testing.T) {
	e, err := New(mock.New(), 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	vectors, err := e.EmbedBatch(context.Background(), []string{"first", "  ", "second", ""})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vectors))
	}
	for i, v := range vectors {
		if len(v) != e.Dimensions() {
			t.Errorf("vector %d has %d dimensions, want %d", i, len(v), e.Dimensions())
		}
	}
}

func TestEmbedBatchAllBlank(t *testing.T) {
	e, err := New(mock.New(), 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.EmbedBatch(context.Background(), []string{"", "   "}); !errors.Is(err, memory.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEmbedBatchReusesCache(t *testing.T) {
	counter := &countingEmbedder{inner: mock.New()}
	e, err := New(counter, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if _, err := e.EmbedBatch(ctx, []string{"alpha", "beta"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	if _, err := e.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"}); err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}

	// alpha and beta were cached by the first batch; only gamma is new.
	if got := counter.calls.Load(); got != 3 {
		t.Errorf("inner embedder called %d times, want 3", got)
	}
}

func TestDimensionsDelegates(t *testing.T) {
	inner := mock.New()
	e, err := New(inner, 128)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if e.Dimensions() != inner.Dimensions() {
		t.Errorf("Dimensions = %d, want %d", e.Dimensions(), inner.Dimensions())
	}
}
