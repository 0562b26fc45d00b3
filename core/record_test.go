package core

import (
	"errors"
	"testing"
	"time"
)

func validRecord() *Record {
	return &Record{
		Text:       "bob: hello",
		Embedding:  []float32{0.1, 0.2, 0.3},
		Kind:       KindObservation,
		Importance: 5,
		CreatedAt:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestKindValid(t *testing.T) {
	for _, k := range []Kind{KindObservation, KindReflection, KindPlan} {
		if !k.Valid() {
			t.Errorf("Kind(%q).Valid() = false, want true", k)
		}
	}
	for _, k := range []Kind{"", "memory", "OBSERVATION"} {
		if k.Valid() {
			t.Errorf("Kind(%q).Valid() = true, want false", k)
		}
	}
}

func TestRecordValidate(t *testing.T) {
	if err := validRecord().Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"unknown kind", func(r *Record) { r.Kind = "memo" }},
		{"empty text", func(r *Record) { r.Text = "" }},
		{"importance below range", func(r *Record) { r.Importance = 0 }},
		{"importance above range", func(r *Record) { r.Importance = 11 }},
		{"missing embedding", func(r *Record) { r.Embedding = nil }},
		{"zero created_at", func(r *Record) { r.CreatedAt = time.Time{} }},
		{"observation with sources", func(r *Record) { r.SourceIDs = []uint64{1} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(rec)
			err := rec.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("error %v does not wrap ErrInvalidRecord", err)
			}
		})
	}
}

func TestRecordValidate_ReflectionMayCarrySources(t *testing.T) {
	rec := validRecord()
	rec.Kind = KindReflection
	rec.SourceIDs = []uint64{1, 2}
	if err := rec.Validate(); err != nil {
		t.Fatalf("reflection with sources rejected: %v", err)
	}
}

func TestRecordClone(t *testing.T) {
	rec := validRecord()
	rec.Kind = KindReflection
	rec.SourceIDs = []uint64{1, 2}

	cl := rec.Clone()
	cl.Embedding[0] = 99
	cl.SourceIDs[0] = 99
	cl.Text = "changed"

	if rec.Embedding[0] == 99 || rec.SourceIDs[0] == 99 || rec.Text == "changed" {
		t.Fatal("clone shares state with the original")
	}
}

func TestExternalError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Externalf("embed", cause)

	if !IsExternal(err) {
		t.Fatal("IsExternal = false for ExternalError")
	}
	if !errors.Is(err, cause) {
		t.Fatal("ExternalError does not unwrap to its cause")
	}
	if IsExternal(errors.New("plain")) {
		t.Fatal("IsExternal = true for plain error")
	}

	wrapped := Externalf("score_importance", cause)
	if wrapped.Error() == "" {
		t.Fatal("empty message")
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewID()
		if id == "" {
			t.Fatal("empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}
