package embedding

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder memoizes an inner Embedder keyed by the exact input text.
// Observation texts recur (the same utterance re-embedded across retrieval
// queries, snapshot reloads, examples), so a small cache saves real API calls.
// Ristretto's admission policy bounds memory without explicit eviction code.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// CacheOptions configure the embedding cache.
type CacheOptions struct {
	// MaxBytes bounds the total cached vector payload.
	MaxBytes int64
	// NumCounters sizes ristretto's frequency sketch; roughly 10x the number
	// of expected entries.
	NumCounters int64
}

// Interface compliance (compile-time assertion)
var _ Embedder = (*CachedEmbedder)(nil)

// NewCachedEmbedder wraps inner with a ristretto cache.
func NewCachedEmbedder(inner Embedder, optFns ...func(o *CacheOptions)) (*CachedEmbedder, error) {
	opts := CacheOptions{
		MaxBytes:    64 << 20,
		NumCounters: 100_000,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: opts.NumCounters,
		MaxCost:     opts.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text or delegates to the inner embedder
// and caches the result.
func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(4*len(vec)))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Wait blocks until pending cache writes are visible. Tests use this to make
// hit/miss behavior deterministic.
func (e *CachedEmbedder) Wait() { e.cache.Wait() }
