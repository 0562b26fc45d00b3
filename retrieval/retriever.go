// Package retrieval ranks memory records against a query and selects the
// highest-scoring prefix that fits a unit budget. Selection is deterministic:
// identical store snapshot, query and timestamp always yield the identical
// ordered sequence.
package retrieval

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/logging"
	"github.com/hupe1980/memstream/scoring"
	"github.com/hupe1980/memstream/token"
)

// Options holds dependency + configuration overrides passed to New.
type Options struct {
	// Scorer computes the combined rank score. Defaults to scoring.New().
	Scorer *scoring.Scorer
	// Index, when set together with MaxCandidates, shortlists candidates by
	// vector similarity instead of scanning the whole stream. Scoring always
	// re-ranks the shortlist, so the index only needs approximate recall.
	Index core.VectorIndex
	// MaxCandidates bounds the shortlist size. Zero disables shortlisting.
	MaxCandidates int
	// Logger receives diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Now supplies the current time; override in tests for determinism.
	Now func() time.Time
}

// Retriever scores, ranks and budget-packs memory records for a query.
type Retriever struct {
	stream   core.Stream
	embedder embedding.Embedder
	counter  token.Counter

	scorer        *scoring.Scorer
	index         core.VectorIndex
	maxCandidates int
	logger        logging.Logger
	now           func() time.Time
}

// New constructs a Retriever with optional overrides.
func New(stream core.Stream, embedder embedding.Embedder, counter token.Counter, optFns ...func(o *Options)) *Retriever {
	opts := Options{
		Scorer: scoring.New(),
		Logger: logging.NoOpLogger{},
		Now:    time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Retriever{
		stream:        stream,
		embedder:      embedder,
		counter:       counter,
		scorer:        opts.Scorer,
		index:         opts.Index,
		maxCandidates: opts.MaxCandidates,
		logger:        opts.Logger,
		now:           opts.Now,
	}
}

type scored struct {
	rec   *core.Record
	score float64
}

// Retrieve embeds the query, ranks every candidate record and greedily selects
// the top-ranked prefix whose summed unit counts fit budget. Selected records
// are touched (selection counts as an access) and returned in rank order, not
// chronological order; callers needing chronological presentation must
// re-sort. An empty stream returns an empty selection without any external
// call.
func (r *Retriever) Retrieve(ctx context.Context, query string, budget int) ([]*core.Record, error) {
	if r.stream.Len() == 0 {
		return nil, nil
	}
	start := time.Now()

	q, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, core.Externalf("embed", err)
	}

	candidates, err := r.candidates(ctx, q)
	if err != nil {
		return nil, err
	}

	now := r.now()
	minImp, maxImp := r.stream.ImportanceBounds()

	ranked := make([]scored, 0, len(candidates))
	for _, rec := range candidates {
		ranked = append(ranked, scored{rec: rec, score: r.scorer.Combined(q, now, rec, minImp, maxImp)})
	}

	// Deterministic order: combined score desc, then newer created_at, then
	// lower id.
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.After(b.rec.CreatedAt)
		}
		return a.rec.ID < b.rec.ID
	})

	// Greedy knapsack approximation: rank order is respected over maximizing
	// fill. A record that can never fit the budget on its own is skipped and
	// the walk continues; otherwise the first record that no longer fits ends
	// the selection.
	var (
		selected []*core.Record
		used     int
	)
	for _, sc := range ranked {
		units := r.counter.Count(sc.rec.Text)
		if used+units > budget {
			if units > budget {
				r.logger.Debug("record %d skipped: %d units exceed budget %d", sc.rec.ID, units, budget)
				continue
			}
			break
		}
		selected = append(selected, sc.rec)
		used += units
	}

	// Selection counts as an access and feeds back into future recency
	// scores. A monotonicity violation drops the record rather than aborting
	// the pass.
	kept := selected[:0]
	for _, rec := range selected {
		if err := r.stream.Touch(rec.ID, now); err != nil {
			if errors.Is(err, core.ErrInvalidRecord) {
				r.logger.Warn("record %d dropped from selection: %v", rec.ID, err)
				continue
			}
			return nil, err
		}
		rec.LastAccessedAt = now
		kept = append(kept, rec)
	}

	if el, ok := r.logger.(*logging.EngineLogger); ok {
		el.LogRetrieval(len(kept), used, time.Since(start))
	} else {
		r.logger.Debug("retrieval selected %d of %d candidates, %d/%d units", len(kept), len(candidates), used, budget)
	}
	return kept, nil
}

// candidates returns the records to score: a vector-index shortlist when one
// is configured and the stream is large enough to make scanning wasteful,
// otherwise every record.
func (r *Retriever) candidates(ctx context.Context, q []float32) ([]*core.Record, error) {
	if r.index == nil || r.maxCandidates <= 0 || r.stream.Len() <= r.maxCandidates {
		return r.stream.All(), nil
	}

	ids, err := r.index.Query(ctx, q, r.maxCandidates)
	if err != nil {
		return nil, core.Externalf("index", err)
	}
	recs := make([]*core.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.stream.Get(id)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				r.logger.Warn("index returned unknown record id %d", id)
				continue
			}
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
