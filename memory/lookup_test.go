package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memorylink/memorylink/memory/cipher"
)

// fakeIndex is an in-memory Index double for exercising the pipeline's
// internal outcomes without a real vector engine.
type fakeIndex struct {
	entries  map[string]*Entry
	putErr   error
	getErr   error
	countErr error
	puts     int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{entries: make(map[string]*Entry)}
}

func (f *fakeIndex) Put(ctx context.Context, id string, embedding []float32, ciphertext string, metadata map[string]string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.puts++
	f.entries[id] = &Entry{Ciphertext: ciphertext, Metadata: metadata}
	return nil
}

func (f *fakeIndex) Query(ctx context.Context, embedding []float32, k int, filter map[string]string) ([]Hit, error) {
	return nil, nil
}

func (f *fakeIndex) GetByID(ctx context.Context, id string) (*Entry, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entries[id], nil
}

func (f *fakeIndex) DeleteByID(ctx context.Context, id string) (bool, error) {
	if _, ok := f.entries[id]; !ok {
		return false, nil
	}
	delete(f.entries, id)
	return true, nil
}

func (f *fakeIndex) Count(ctx context.Context) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.entries), nil
}

func (f *fakeIndex) Close() error { return nil }

// stubEmbedder returns a fixed vector, or a fixed error.
type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return [][]float32{{1, 0, 0}}, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }

func testSuite(t *testing.T) *cipher.Suite {
	t.Helper()
	suite, err := cipher.DeriveSuite("lookup-test-secret")
	if err != nil {
		t.Fatalf("DeriveSuite: %v", err)
	}
	return suite
}

func storedEntry(t *testing.T, suite *cipher.Suite, text, owner string) *Entry {
	t.Helper()
	ciphertext, err := suite.Encrypt(text)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	return &Entry{
		Ciphertext: ciphertext,
		Metadata: map[string]string{
			metaKeyOwner:     owner,
			metaKeyTags:      "a,b",
			metaKeyTimestamp: time.Now().UTC().Format(time.RFC3339Nano),
		},
	}
}

func TestLookupOutcomes(t *testing.T) {
	suite := testSuite(t)
	index := newFakeIndex()
	index.entries["good"] = storedEntry(t, suite, "readable", "u1")
	index.entries["other-owner"] = storedEntry(t, suite, "not yours", "u2")

	corrupted := storedEntry(t, suite, "will corrupt", "u1")
	corrupted.Ciphertext = "not-a-ciphertext"
	index.entries["corrupted"] = corrupted

	badTime := storedEntry(t, suite, "bad timestamp", "u1")
	badTime.Metadata[metaKeyTimestamp] = "yesterday-ish"
	index.entries["bad-time"] = badTime

	p := NewPipeline(index, &stubEmbedder{}, suite, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		id   string
		want lookupStatus
	}{
		{"found", "good", lookupFound},
		{"missing id", "nope", lookupNotFound},
		{"ownership denied", "other-owner", lookupDenied},
		{"corrupt ciphertext", "corrupted", lookupUnreadable},
		{"corrupt timestamp", "bad-time", lookupUnreadable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := p.lookup(ctx, tt.id, "u1")
			if outcome.status != tt.want {
				t.Errorf("lookup(%s) status = %v, want %v", tt.id, outcome.status, tt.want)
			}
		})
	}

	// Index read failures also collapse to unreadable.
	index.getErr = errors.New("index offline")
	if outcome := p.lookup(ctx, "good", "u1"); outcome.status != lookupUnreadable {
		t.Errorf("status with failing index = %v, want lookupUnreadable", outcome.status)
	}
}

func TestGetCollapsesOutcomesToAbsent(t *testing.T) {
	suite := testSuite(t)
	index := newFakeIndex()
	index.entries["theirs"] = storedEntry(t, suite, "secret", "u2")

	p := NewPipeline(index, &stubEmbedder{}, suite, nil)
	ctx := context.Background()

	for _, id := range []string{"missing", "theirs"} {
		record, err := p.Get(ctx, id, "u1")
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if record != nil {
			t.Errorf("Get(%s) leaked a record: %+v", id, record)
		}
	}
}

func TestAddEmbedFailureAbortsBeforePersist(t *testing.T) {
	suite := testSuite(t)
	index := newFakeIndex()
	p := NewPipeline(index, &stubEmbedder{err: errors.New("model exploded")}, suite, nil)

	_, err := p.Add(context.Background(), AddRequest{Text: "hello", Owner: "u1"})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if index.puts != 0 {
		t.Errorf("index received %d writes after embed failure, want 0", index.puts)
	}
}

func TestAddIndexFailureSurfacesAsStorageError(t *testing.T) {
	suite := testSuite(t)
	index := newFakeIndex()
	index.putErr = errors.New("disk full")
	p := NewPipeline(index, &stubEmbedder{}, suite, nil)

	_, err := p.Add(context.Background(), AddRequest{Text: "hello", Owner: "u1"})
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	if !errors.Is(err, index.putErr) {
		t.Errorf("StorageError should wrap the cause, got %v", err)
	}
}

func TestStatsCountFailure(t *testing.T) {
	suite := testSuite(t)
	index := newFakeIndex()
	index.countErr = errors.New("count unavailable")
	p := NewPipeline(index, &stubEmbedder{}, suite, nil)

	stats := p.Stats(context.Background())
	if stats.Error == "" {
		t.Error("expected Error to be populated when count fails")
	}
	if stats.EmbeddingDimension != 3 {
		t.Errorf("dimension = %d, want 3", stats.EmbeddingDimension)
	}
}

func TestSimilarityFromDistance(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.25, 0.75},
		{1, 0},
		{1.7, 0},  // distance beyond 1 clamps to 0
		{-0.5, 1}, // better-than-identical clamps to 1
	}
	for _, tt := range tests {
		if got := similarityFromDistance(tt.distance); got != tt.want {
			t.Errorf("similarityFromDistance(%v) = %v, want %v", tt.distance, got, tt.want)
		}
	}
}
