package core

import (
	"context"
	"time"
)

// Stream is the append-mostly store of memory records owned by a single agent
// identity. Implementations must keep insertion order, index records by id and
// uphold the ordering invariants: CreatedAt is non-decreasing with ID, and
// LastAccessedAt only ever advances.
type Stream interface {
	// Insert validates rec against the current contents (dangling SourceIDs,
	// CreatedAt regression) and appends it, returning the assigned id.
	Insert(rec *Record) (uint64, error)

	// Get returns a copy of the record with the given id, or an error wrapping
	// ErrNotFound.
	Get(id uint64) (*Record, error)

	// All returns copies of every record in insertion order.
	All() []*Record

	// Touch advances the record's LastAccessedAt to at. It fails with an error
	// wrapping ErrInvalidRecord when at precedes the current access time;
	// access time is monotonic per record and is never silently corrected.
	Touch(id uint64, at time.Time) error

	// Len reports the number of stored records.
	Len() int

	// ImportanceBounds returns the minimum and maximum importance currently in
	// the stream. Both are zero on an empty stream.
	ImportanceBounds() (min, max int)
}

// VectorIndex is an optional approximate-nearest-neighbor backend used to
// shortlist retrieval candidates on large streams so scoring need not scan
// every record. The index is advisory: retrieval falls back to a full scan
// when no index is configured, and scoring always re-ranks whatever the index
// returns.
type VectorIndex interface {
	// Add registers a record's embedding under its id.
	Add(ctx context.Context, id uint64, text string, embedding []float32) error

	// Query returns up to limit record ids ordered by descending similarity.
	Query(ctx context.Context, embedding []float32, limit int) ([]uint64, error)
}
