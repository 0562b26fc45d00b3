package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record id does not exist in the stream.
	ErrNotFound = errors.New("memory record not found")

	// ErrInvalidRecord is returned for records that violate store invariants:
	// dangling source ids, non-monotonic timestamps, out-of-range importance.
	ErrInvalidRecord = errors.New("invalid memory record")

	// ErrBudgetExceeded is returned when a single piece of text can never fit
	// the given budget. During retrieval the offending record is skipped, not
	// fatal; context assembly fails with it when the persona alone overflows.
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// ExternalError wraps a failure of an injected capability (embedder, model,
// vector index). Components below the conversation manager never retry these;
// they propagate to the turn boundary where retry/abort policy lives.
type ExternalError struct {
	Op  string // "embed", "complete", "score_importance", "synthesize", "index"
	Err error
}

// Error implements the error interface.
func (e *ExternalError) Error() string {
	return fmt.Sprintf("external %s call failed: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying adapter error.
func (e *ExternalError) Unwrap() error { return e.Err }

// Externalf wraps err as an ExternalError for the named operation.
func Externalf(op string, err error) error {
	return &ExternalError{Op: op, Err: err}
}

// IsExternal reports whether err originated at the external-call boundary,
// meaning the whole turn may be retried safely.
func IsExternal(err error) bool {
	var ee *ExternalError
	return errors.As(err, &ee)
}
