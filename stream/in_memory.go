package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/logging"
)

// Options holds dependency + configuration overrides passed to NewInMemoryStream.
type Options struct {
	// Index, when set, receives every inserted record so retrieval can
	// shortlist candidates instead of scanning the whole stream. Index
	// failures are logged and do not fail the insert; the index is advisory.
	Index core.VectorIndex
	// Logger receives diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// InMemoryStream is a process-local core.Stream: insertion ordered, indexed by
// id, guarded by an RWMutex. Returned records are clones to prevent external
// mutation of internal state. Suitable from tens to many thousands of records;
// pair it with a vector index for cheap candidate shortlisting beyond that.
type InMemoryStream struct {
	mu      sync.RWMutex
	records []*core.Record
	byID    map[uint64]*core.Record
	nextID  uint64
	minImp  int
	maxImp  int

	index  core.VectorIndex
	logger logging.Logger
}

// Interface compliance (compile-time assertion)
var _ core.Stream = (*InMemoryStream)(nil)

// NewInMemoryStream constructs an empty in-memory stream with optional overrides.
func NewInMemoryStream(optFns ...func(o *Options)) *InMemoryStream {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStream{
		byID:   make(map[uint64]*core.Record),
		index:  opts.Index,
		logger: opts.Logger,
	}
}

// Insert validates rec against the current contents and appends it, returning
// the assigned id. The record's LastAccessedAt defaults to CreatedAt when
// unset.
func (s *InMemoryStream) Insert(rec *core.Record) (uint64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	if n := len(s.records); n > 0 {
		if rec.CreatedAt.Before(s.records[n-1].CreatedAt) {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: created_at %s precedes latest record %s",
				core.ErrInvalidRecord, rec.CreatedAt.Format(time.RFC3339Nano), s.records[n-1].CreatedAt.Format(time.RFC3339Nano))
		}
	}
	for _, src := range rec.SourceIDs {
		if _, ok := s.byID[src]; !ok {
			s.mu.Unlock()
			return 0, fmt.Errorf("%w: dangling source id %d", core.ErrInvalidRecord, src)
		}
	}

	s.nextID++
	stored := rec.Clone()
	stored.ID = s.nextID
	if stored.LastAccessedAt.IsZero() {
		stored.LastAccessedAt = stored.CreatedAt
	}
	s.records = append(s.records, stored)
	s.byID[stored.ID] = stored
	s.noteImportanceLocked(stored.Importance)
	s.mu.Unlock()

	if s.index != nil {
		if err := s.index.Add(context.Background(), stored.ID, stored.Text, stored.Embedding); err != nil {
			s.logger.Warn("vector index add failed for record %d: %v", stored.ID, err)
		}
	}

	return stored.ID, nil
}

// Get returns a clone of the record with the given id.
func (s *InMemoryStream) Get(id uint64) (*core.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", core.ErrNotFound, id)
	}
	return rec.Clone(), nil
}

// All returns clones of every record in insertion order.
func (s *InMemoryStream) All() []*core.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Record, len(s.records))
	for i, rec := range s.records {
		out[i] = rec.Clone()
	}
	return out
}

// Touch advances the record's LastAccessedAt. Access time is monotonic per
// record; moving it backwards is an invariant violation reported to the
// caller, never silently corrected.
func (s *InMemoryStream) Touch(id uint64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%w: id %d", core.ErrNotFound, id)
	}
	if at.Before(rec.LastAccessedAt) {
		return fmt.Errorf("%w: touch at %s precedes last access %s",
			core.ErrInvalidRecord, at.Format(time.RFC3339Nano), rec.LastAccessedAt.Format(time.RFC3339Nano))
	}
	rec.LastAccessedAt = at
	return nil
}

// Len reports the number of stored records.
func (s *InMemoryStream) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// ImportanceBounds returns the running min and max importance in the stream.
func (s *InMemoryStream) ImportanceBounds() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minImp, s.maxImp
}

func (s *InMemoryStream) noteImportanceLocked(imp int) {
	if len(s.records) == 1 {
		s.minImp, s.maxImp = imp, imp
		return
	}
	if imp < s.minImp {
		s.minImp = imp
	}
	if imp > s.maxImp {
		s.maxImp = imp
	}
}
