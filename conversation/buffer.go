package conversation

import (
	"sync"
	"time"
)

// Line is one transcript entry: who said what, when.
type Line struct {
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Buffer is the rolling raw transcript of the current session, distinct from
// the memory stream: transcript lines also become observation records, but the
// buffer retains the literal recent exchange for low-latency continuity
// without any scoring or retrieval.
type Buffer struct {
	mu       sync.Mutex
	lines    []Line
	maxLines int
}

// BufferOptions configure a Buffer.
type BufferOptions struct {
	// MaxLines bounds the retained tail; older lines are dropped.
	MaxLines int
}

// NewBuffer constructs an empty transcript buffer.
func NewBuffer(optFns ...func(o *BufferOptions)) *Buffer {
	opts := BufferOptions{MaxLines: 40}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Buffer{maxLines: opts.MaxLines}
}

// Append adds a line to the tail, dropping the oldest line when full.
func (b *Buffer) Append(speaker, text string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, Line{Speaker: speaker, Text: text, Timestamp: at})
	if len(b.lines) > b.maxLines {
		b.lines = b.lines[len(b.lines)-b.maxLines:]
	}
}

// Lines returns a copy of the retained tail in chronological order.
func (b *Buffer) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len reports the number of retained lines.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
