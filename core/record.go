package core

import (
	"fmt"
	"time"
)

// Kind classifies a memory record. Observations are raw transcript entries;
// reflections and plans are synthesized from earlier records and carry
// provenance in SourceIDs.
type Kind string

const (
	// KindObservation is a raw transcript entry (one utterance).
	KindObservation Kind = "observation"
	// KindReflection is a higher-level insight synthesized from prior records.
	KindReflection Kind = "reflection"
	// KindPlan is a forward-looking intention synthesized from prior records.
	KindPlan Kind = "plan"
)

// Valid reports whether k is one of the known record kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindObservation, KindReflection, KindPlan:
		return true
	}
	return false
}

// Importance bounds for model-elicited salience ratings.
const (
	MinImportance = 1
	MaxImportance = 10
)

// Record is one persisted unit of experience or synthesized insight. All
// fields except LastAccessedAt are immutable after insertion; LastAccessedAt
// advances monotonically each time the record is selected during retrieval.
type Record struct {
	// ID is assigned by the stream at insertion, monotonically increasing.
	ID uint64 `json:"id"`
	// Text is the memory content.
	Text string `json:"text"`
	// Embedding is the fixed-length vector produced at creation time.
	Embedding []float32 `json:"embedding"`
	// Kind distinguishes raw observations from synthesized memories.
	Kind Kind `json:"kind"`
	// Importance is the model-elicited salience rating in [MinImportance, MaxImportance].
	Importance int `json:"importance"`
	// CreatedAt is set once at creation.
	CreatedAt time.Time `json:"created_at"`
	// LastAccessedAt starts equal to CreatedAt and advances on retrieval.
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// SourceIDs lists the records this one was synthesized from. Empty for
	// observations. Sources always predate the record, so provenance forms a
	// DAG by construction.
	SourceIDs []uint64 `json:"source_ids,omitempty"`
}

// Validate checks the intrinsic invariants of a record prior to insertion.
// Stream implementations additionally verify ordering and provenance against
// their current contents.
func (r *Record) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: empty text", ErrInvalidRecord)
	}
	if r.Importance < MinImportance || r.Importance > MaxImportance {
		return fmt.Errorf("%w: importance %d outside [%d,%d]", ErrInvalidRecord, r.Importance, MinImportance, MaxImportance)
	}
	if len(r.Embedding) == 0 {
		return fmt.Errorf("%w: missing embedding", ErrInvalidRecord)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: zero created_at", ErrInvalidRecord)
	}
	if r.Kind == KindObservation && len(r.SourceIDs) > 0 {
		return fmt.Errorf("%w: observation with source ids", ErrInvalidRecord)
	}
	return nil
}

// Clone returns a deep copy so callers can hold records without exposing the
// store's internal state to mutation.
func (r *Record) Clone() *Record {
	nr := *r
	if r.Embedding != nil {
		nr.Embedding = make([]float32, len(r.Embedding))
		copy(nr.Embedding, r.Embedding)
	}
	if r.SourceIDs != nil {
		nr.SourceIDs = make([]uint64, len(r.SourceIDs))
		copy(nr.SourceIDs, r.SourceIDs)
	}
	return &nr
}
