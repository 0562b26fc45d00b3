// Package openai provides an embedding.Embedder backed by the OpenAI
// embeddings API using the official client.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/memstream/embedding"
)

// Options configure the OpenAI embedder.
type Options struct {
	Model openai.EmbeddingModel
	// Dimensions is requested from the API, so the returned vectors always
	// have this size (text-embedding-3 models support down-projection). Zero
	// leaves the parameter unset for models that reject it.
	Dimensions int
}

// Embedder wraps the OpenAI embeddings API behind the generic
// embedding.Embedder interface.
type Embedder struct {
	client *openai.Client
	opts   Options
}

// Interface compliance (compile-time assertion)
var _ embedding.Embedder = (*Embedder)(nil)

// NewEmbedder creates a new OpenAI embedder using the official client.
func NewEmbedder(optFns ...func(o *Options)) *Embedder {
	client := openai.NewClient()
	return NewEmbedderFromClient(&client, optFns...)
}

// NewEmbedderFromClient creates a new OpenAI embedder from an existing client.
func NewEmbedderFromClient(client *openai.Client, optFns ...func(o *Options)) *Embedder {
	opts := Options{
		Model:      openai.EmbeddingModelTextEmbedding3Small,
		Dimensions: 1536,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Embedder{client: client, opts: opts}
}

// Embed converts a single text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, e.params(text))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings api returned no data")
	}
	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// params builds the request, including the dimensions parameter so the API
// returns vectors of the configured size.
func (e *Embedder) params(text string) openai.EmbeddingNewParams {
	p := openai.EmbeddingNewParams{
		Model: e.opts.Model,
		Input: openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
	}
	if e.opts.Dimensions > 0 {
		p.Dimensions = openai.Int(int64(e.opts.Dimensions))
	}
	return p
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int { return e.opts.Dimensions }
