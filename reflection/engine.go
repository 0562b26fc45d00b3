// Package reflection periodically compresses recent memories into
// higher-level insight records. The trigger is cumulative importance: once the
// observations recorded since the last reflection add up past a threshold, the
// engine retrieves the most salient records, asks the model to synthesize
// insights and writes them back as reflection records carrying provenance.
// Those records feed future retrieval and future reflections alike.
package reflection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/logging"
	"github.com/hupe1980/memstream/model"
	"github.com/hupe1980/memstream/retrieval"
)

// DefaultQuery is the fixed reflective query used to retrieve the records a
// reflection pass consults.
const DefaultQuery = "What are the high-level insights you can infer from recent experience?"

// Options holds dependency + configuration overrides passed to New.
type Options struct {
	// Threshold is the cumulative observation importance that triggers a
	// reflection pass.
	Threshold int
	// Budget is the retrieval unit budget for the records consulted.
	Budget int
	// MaxInsights caps how many insight records a single pass writes.
	MaxInsights int
	// Query overrides the fixed reflective query.
	Query string
	// Logger receives diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Now supplies the current time; override in tests for determinism.
	Now func() time.Time
}

// Engine tracks the reflection trigger and runs reflection passes.
type Engine struct {
	stream    core.Stream
	retriever *retrieval.Retriever
	mdl       model.Model
	embedder  embedding.Embedder

	threshold   int
	budget      int
	maxInsights int
	query       string
	logger      logging.Logger
	now         func() time.Time

	mu      sync.Mutex
	pending int
}

// New constructs a reflection Engine with optional overrides.
func New(stream core.Stream, retriever *retrieval.Retriever, mdl model.Model, embedder embedding.Embedder, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Threshold:   100,
		Budget:      1500,
		MaxInsights: 5,
		Query:       DefaultQuery,
		Logger:      logging.NoOpLogger{},
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Engine{
		stream:      stream,
		retriever:   retriever,
		mdl:         mdl,
		embedder:    embedder,
		threshold:   opts.Threshold,
		budget:      opts.Budget,
		maxInsights: opts.MaxInsights,
		query:       opts.Query,
		logger:      opts.Logger,
		now:         opts.Now,
	}
}

// NoteObservation accumulates the importance of a newly recorded observation
// toward the trigger threshold.
func (e *Engine) NoteObservation(importance int) {
	e.mu.Lock()
	e.pending += importance
	e.mu.Unlock()
}

// Pending returns the accumulated importance since the last successful
// reflection.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// Due reports whether the accumulated importance has crossed the threshold.
func (e *Engine) Due() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending >= e.threshold
}

// MaybeReflect runs one reflection pass when due and returns the number of
// reflection records written. Insertion is all-or-nothing: every insight must
// be embedded and importance-scored before anything is written. The pending
// counter is reset only on success, so a failed pass fires again on the next
// qualifying turn.
func (e *Engine) MaybeReflect(ctx context.Context) (int, error) {
	if !e.Due() {
		return 0, nil
	}

	start := time.Now()

	consulted, err := e.retriever.Retrieve(ctx, e.query, e.budget)
	if err != nil {
		return 0, fmt.Errorf("reflection retrieval: %w", err)
	}
	if len(consulted) == 0 {
		return 0, nil
	}

	statements := make([]string, len(consulted))
	sourceIDs := make([]uint64, len(consulted))
	for i, rec := range consulted {
		statements[i] = rec.Text
		sourceIDs[i] = rec.ID
	}

	insights, err := e.mdl.Synthesize(ctx, statements)
	if err != nil {
		return 0, core.Externalf("synthesize", err)
	}
	if len(insights) == 0 {
		e.logger.Warn("reflection produced no insights; trigger counter kept")
		return 0, nil
	}
	if len(insights) > e.maxInsights {
		insights = insights[:e.maxInsights]
	}

	records, err := e.buildRecords(ctx, insights, sourceIDs)
	if err != nil {
		return 0, err
	}

	for _, rec := range records {
		if _, err := e.stream.Insert(rec); err != nil {
			return 0, fmt.Errorf("insert reflection: %w", err)
		}
	}

	e.mu.Lock()
	e.pending = 0
	e.mu.Unlock()

	if el, ok := e.logger.(*logging.EngineLogger); ok {
		el.LogReflection(len(records), len(consulted), time.Since(start))
	} else {
		e.logger.Info("reflection wrote %d insights from %d records in %s", len(records), len(consulted), time.Since(start))
	}
	return len(records), nil
}

// buildRecords embeds and importance-scores every insight concurrently. Any
// failure discards the whole batch so no partial record is ever persisted.
func (e *Engine) buildRecords(ctx context.Context, insights []string, sourceIDs []uint64) ([]*core.Record, error) {
	now := e.now()
	records := make([]*core.Record, len(insights))
	errs := make([]error, len(insights))

	var wg sync.WaitGroup
	for i, text := range insights {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			emb, err := e.embedder.Embed(ctx, text)
			if err != nil {
				errs[i] = core.Externalf("embed", err)
				return
			}
			imp, err := e.mdl.ScoreImportance(ctx, text)
			if err != nil {
				errs[i] = core.Externalf("score_importance", err)
				return
			}
			records[i] = &core.Record{
				Text:       text,
				Embedding:  emb,
				Kind:       core.KindReflection,
				Importance: imp,
				CreatedAt:  now,
				SourceIDs:  sourceIDs,
			}
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}
