package memory

import (
	"math"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{0.5, -0.2, 0.8, 0.1}
	if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("similarity(v, v) = %v, want 1.0", got)
	}
}

func TestCosineSimilarityClamped(t *testing.T) {
	// Opposite vectors have cosine -1; the result clamps to 0.
	a := []float32{1, 0}
	b := []float32{-1, 0}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("similarity of opposite vectors = %v, want 0", got)
	}

	// Orthogonal vectors score 0.
	c := []float32{0, 1}
	if got := CosineSimilarity(a, c); got != 0 {
		t.Errorf("similarity of orthogonal vectors = %v, want 0", got)
	}
}

func TestCosineSimilarityDegenerate(t *testing.T) {
	if got := CosineSimilarity([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Errorf("zero-magnitude vector should score 0, got %v", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Errorf("mismatched dimensions should score 0, got %v", got)
	}
}

func TestCosineSimilarityRange(t *testing.T) {
	vectors := [][]float32{
		{1, 2, 3},
		{-1, -2, -3},
		{0.001, 0, 0},
		{5, -5, 5},
	}
	for _, a := range vectors {
		for _, b := range vectors {
			got := CosineSimilarity(a, b)
			if got < 0 || got > 1 {
				t.Errorf("similarity(%v, %v) = %v out of [0,1]", a, b, got)
			}
		}
	}
}
