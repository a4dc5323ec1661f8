package memory

import "math"

// CosineSimilarity returns the cosine similarity of two vectors,
// clamped to [0, 1]. Negative cosine clamps to 0. Zero-magnitude or
// mismatched-dimension inputs yield 0 rather than an error: both are
// degenerate comparisons, not failures.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return math.Min(1, math.Max(0, sim))
}
