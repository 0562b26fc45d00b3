package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/hupe1980/memstream/core"
)

// Restore rebuilds an in-memory stream from a record-by-record snapshot,
// preserving ids, timestamps and provenance exactly. Records must arrive in
// insertion order (ids strictly increasing, created_at non-decreasing) with no
// dangling source ids; violations fail with core.ErrInvalidRecord.
func Restore(records []*core.Record, optFns ...func(o *Options)) (*InMemoryStream, error) {
	s := NewInMemoryStream(optFns...)
	for i, rec := range records {
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if rec.ID <= s.nextID {
			return nil, fmt.Errorf("%w: id %d out of order at position %d", core.ErrInvalidRecord, rec.ID, i)
		}
		if n := len(s.records); n > 0 && rec.CreatedAt.Before(s.records[n-1].CreatedAt) {
			return nil, fmt.Errorf("%w: created_at regression at id %d", core.ErrInvalidRecord, rec.ID)
		}
		if rec.LastAccessedAt.Before(rec.CreatedAt) {
			return nil, fmt.Errorf("%w: last_accessed_at precedes created_at at id %d", core.ErrInvalidRecord, rec.ID)
		}
		for _, src := range rec.SourceIDs {
			if _, ok := s.byID[src]; !ok {
				return nil, fmt.Errorf("%w: dangling source id %d at id %d", core.ErrInvalidRecord, src, rec.ID)
			}
		}

		stored := rec.Clone()
		s.records = append(s.records, stored)
		s.byID[stored.ID] = stored
		s.nextID = stored.ID
		s.noteImportanceLocked(stored.Importance)

		if s.index != nil {
			if err := s.index.Add(context.Background(), stored.ID, stored.Text, stored.Embedding); err != nil {
				s.logger.Warn("vector index add failed for record %d: %v", stored.ID, err)
			}
		}
	}
	return s, nil
}

// Encode writes the stream as a JSON array of records. The format carries
// every field required for round-trip fidelity: id, text, embedding, kind,
// importance, created_at, last_accessed_at and source_ids.
func Encode(w io.Writer, s core.Stream) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(s.All()); err != nil {
		return fmt.Errorf("encode stream: %w", err)
	}
	return nil
}

// Decode restores a stream previously written by Encode.
func Decode(r io.Reader, optFns ...func(o *Options)) (*InMemoryStream, error) {
	var records []*core.Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode stream: %w", err)
	}
	return Restore(records, optFns...)
}
