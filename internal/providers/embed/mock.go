package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// Mock generates deterministic embeddings from a text hash. It exists for
// tests and for running the service without an embedding provider; similar
// texts do NOT get similar vectors, only identical texts match.
type Mock struct {
	dimensions int
}

func NewMock(dimensions int) *Mock {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &Mock{dimensions: dimensions}
}

func (m *Mock) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	embedding := make([]float32, m.dimensions)
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG keyed on the text hash
		seed = seed*6364136223846793005 + 1442695040888963407
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

func (m *Mock) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}
	return normalized
}
