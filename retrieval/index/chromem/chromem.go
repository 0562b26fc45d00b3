// Package chromem implements core.VectorIndex on top of chromem-go, a pure Go
// embedded vector database. It gives retrieval an approximate-nearest-neighbor
// shortlist without any external service.
package chromem

import (
	"context"
	"fmt"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/hupe1980/memstream/core"
)

// Options configure the index.
type Options struct {
	// Collection names the chromem collection holding the records.
	Collection string
}

// Index is a chromem-go backed core.VectorIndex.
type Index struct {
	col *chromem.Collection
}

// Interface compliance (compile-time assertion)
var _ core.VectorIndex = (*Index)(nil)

// New creates an in-process chromem index.
func New(optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Collection: "memstream"}
	for _, fn := range optFns {
		fn(&opts)
	}

	db := chromem.NewDB()
	// Embeddings are always provided by the caller, so no embedding func and
	// the default cosine distance.
	col, err := db.CreateCollection(opts.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return &Index{col: col}, nil
}

// Add registers a record's embedding under its id.
func (i *Index) Add(ctx context.Context, id uint64, text string, emb []float32) error {
	err := i.col.AddDocument(ctx, chromem.Document{
		ID:        strconv.FormatUint(id, 10),
		Content:   text,
		Embedding: emb,
	})
	if err != nil {
		return fmt.Errorf("add document %d: %w", id, err)
	}
	return nil
}

// Query returns up to limit record ids ordered by descending similarity.
func (i *Index) Query(ctx context.Context, emb []float32, limit int) ([]uint64, error) {
	// chromem rejects nResults above the collection size.
	if n := i.col.Count(); limit > n {
		limit = n
	}
	if limit <= 0 {
		return nil, nil
	}

	results, err := i.col.QueryEmbedding(ctx, emb, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}

	ids := make([]uint64, 0, len(results))
	for _, res := range results {
		id, err := strconv.ParseUint(res.ID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed document id %q: %w", res.ID, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
