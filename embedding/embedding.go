// Package embedding defines the Embedder capability the engine injects for
// turning text into fixed-length vectors, together with a deterministic local
// implementation for tests and demos and a ristretto-backed caching wrapper.
// Live adapters (e.g. the OpenAI embeddings API) live in subpackages.
package embedding

import "context"

// Embedder converts text to vector embeddings. Repeated calls on identical
// text must yield vectors whose cosine similarity is (approximately) one;
// deterministic implementations are relied on by tests.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}
