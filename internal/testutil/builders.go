package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
)

// Epoch is the fixed base time used by deterministic tests.
var Epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// RecordBuilder provides a fluent helper for constructing records in tests.
// Example:
//
//	rec := NewRecordBuilder("saw a red fox").Importance(8).CreatedHoursAgo(now, 10).Build()
//
// Chain only the parts you need; sensible defaults are applied (observation
// kind, importance 5, a deterministic embedding of the text, CreatedAt Epoch).
type RecordBuilder struct {
	text       string
	kind       core.Kind
	importance int
	createdAt  time.Time
	accessedAt time.Time
	embedding  []float32
	sourceIDs  []uint64
}

// NewRecordBuilder creates a builder for an observation with the given text.
func NewRecordBuilder(text string) *RecordBuilder {
	return &RecordBuilder{
		text:       text,
		kind:       core.KindObservation,
		importance: 5,
		createdAt:  Epoch,
	}
}

// Kind sets the record kind (chainable).
func (b *RecordBuilder) Kind(k core.Kind) *RecordBuilder { b.kind = k; return b }

// Importance sets the importance rating (chainable).
func (b *RecordBuilder) Importance(imp int) *RecordBuilder { b.importance = imp; return b }

// CreatedAt sets the creation timestamp (chainable).
func (b *RecordBuilder) CreatedAt(t time.Time) *RecordBuilder { b.createdAt = t; return b }

// CreatedHoursAgo sets the creation timestamp relative to now (chainable).
func (b *RecordBuilder) CreatedHoursAgo(now time.Time, hours float64) *RecordBuilder {
	b.createdAt = now.Add(-time.Duration(hours * float64(time.Hour)))
	return b
}

// AccessedAt sets the last access timestamp (chainable; defaults to CreatedAt).
func (b *RecordBuilder) AccessedAt(t time.Time) *RecordBuilder { b.accessedAt = t; return b }

// Embedding overrides the deterministic default embedding (chainable).
func (b *RecordBuilder) Embedding(vec []float32) *RecordBuilder { b.embedding = vec; return b }

// Sources sets the provenance ids and flips the kind to reflection unless one
// was set explicitly (chainable).
func (b *RecordBuilder) Sources(ids ...uint64) *RecordBuilder {
	b.sourceIDs = ids
	if b.kind == core.KindObservation {
		b.kind = core.KindReflection
	}
	return b
}

// Build materializes the record.
func (b *RecordBuilder) Build() *core.Record {
	emb := b.embedding
	if emb == nil {
		emb = EmbedText(b.text)
	}
	return &core.Record{
		Text:           b.text,
		Embedding:      emb,
		Kind:           b.kind,
		Importance:     b.importance,
		CreatedAt:      b.createdAt,
		LastAccessedAt: b.accessedAt,
		SourceIDs:      b.sourceIDs,
	}
}

var hashEmbedder = embedding.NewHashEmbedder()

// EmbedText returns the deterministic hash embedding of text, matching what
// embedding.NewHashEmbedder produces for the same input.
func EmbedText(text string) []float32 {
	vec, _ := hashEmbedder.Embed(context.Background(), text)
	return vec
}

// Clock is a controllable time source for deterministic tests. Now returns
// the current instant; Advance moves it forward.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock fixed at start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the clock's current instant.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
