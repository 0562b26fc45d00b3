package core

import "github.com/google/uuid"

// NewID generates a unique identifier for turns and sessions. Record ids are
// not uuids; they are monotonic integers assigned by the stream.
func NewID() string { return uuid.NewString() }
