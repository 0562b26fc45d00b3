package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// DefaultDimensions matches the output size of all-MiniLM-L6-v2 style models.
const DefaultDimensions = 384

// HashEmbedder generates deterministic unit vectors from a text hash. It has
// no semantic understanding; identical texts embed identically (cosine 1.0)
// and distinct texts land pseudo-randomly on the unit sphere. That is enough
// for tests, examples and offline development.
type HashEmbedder struct {
	dimensions int
}

// HashOptions configure a HashEmbedder.
type HashOptions struct {
	Dimensions int
}

// Interface compliance (compile-time assertion)
var _ Embedder = (*HashEmbedder)(nil)

// NewHashEmbedder creates a deterministic hash-based embedder.
func NewHashEmbedder(optFns ...func(o *HashOptions)) *HashEmbedder {
	opts := HashOptions{Dimensions: DefaultDimensions}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &HashEmbedder{dimensions: opts.Dimensions}
}

// Embed creates a deterministic embedding from the text's FNV hash, expanded
// through a linear congruential generator and normalized to a unit vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, e.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *HashEmbedder) Dimensions() int { return e.dimensions }

// normalize converts a vector to unit length.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
