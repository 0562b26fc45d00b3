package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/logging"
	"github.com/hupe1980/memstream/model"
	"github.com/hupe1980/memstream/reflection"
	"github.com/hupe1980/memstream/retrieval"
)

// Options holds dependency + configuration overrides passed to NewManager.
type Options struct {
	// Persona is the fixed system text included in every prompt.
	Persona string
	// AgentName labels the agent's own lines in transcript and memory.
	AgentName string
	// TotalBudget bounds the assembled prompt in counter units.
	TotalBudget int
	// MemoryBudget bounds the retrieved-memory portion of the prompt.
	MemoryBudget int
	// ReplyMaxTokens bounds the model completion.
	ReplyMaxTokens int
	// Buffer overrides the default transcript buffer.
	Buffer *Buffer
	// Logger receives diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Now supplies the current time; override in tests for determinism.
	Now func() time.Time
}

// Manager orchestrates one conversation turn end-to-end against a single
// memory stream. Turns are serialized: the stream never sees two concurrent
// mutating passes. Distinct managers over distinct streams run in parallel.
type Manager struct {
	mu sync.Mutex

	stream    core.Stream
	retriever *retrieval.Retriever
	reflector *reflection.Engine
	assembler *Assembler
	buffer    *Buffer
	mdl       model.Model
	embedder  embedding.Embedder

	persona        string
	agentName      string
	totalBudget    int
	memoryBudget   int
	replyMaxTokens int
	logger         logging.Logger
	now            func() time.Time
}

// NewManager constructs a Manager with optional overrides.
func NewManager(
	stream core.Stream,
	retriever *retrieval.Retriever,
	reflector *reflection.Engine,
	assembler *Assembler,
	mdl model.Model,
	embedder embedding.Embedder,
	optFns ...func(o *Options),
) *Manager {
	opts := Options{
		AgentName:      "agent",
		TotalBudget:    2048,
		MemoryBudget:   512,
		ReplyMaxTokens: 512,
		Logger:         logging.NoOpLogger{},
		Now:            time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Buffer == nil {
		opts.Buffer = NewBuffer()
	}
	return &Manager{
		stream:         stream,
		retriever:      retriever,
		reflector:      reflector,
		assembler:      assembler,
		buffer:         opts.Buffer,
		mdl:            mdl,
		embedder:       embedder,
		persona:        opts.Persona,
		agentName:      opts.AgentName,
		totalBudget:    opts.TotalBudget,
		memoryBudget:   opts.MemoryBudget,
		replyMaxTokens: opts.ReplyMaxTokens,
		logger:         opts.Logger,
		now:            opts.Now,
	}
}

// Buffer exposes the transcript buffer (read-mostly; tests inspect it).
func (m *Manager) Buffer() *Buffer { return m.buffer }

// Converse runs one turn: record the incoming message as an observation,
// reflect if due, retrieve memories relevant to the message, assemble the
// prompt (which therefore can recall the just-recorded message), invoke the
// model and record its reply. External-call failures abort the turn; the
// caller may retry the whole turn. When the reply was generated but recording
// it failed, the reply is returned together with the error.
func (m *Manager) Converse(ctx context.Context, speaker, message string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	turnID := core.NewID()
	m.logger.Debug("turn %s started speaker=%s", turnID, speaker)

	// RecordIncoming
	rec, err := m.record(ctx, speaker, message)
	if err != nil {
		return "", fmt.Errorf("record incoming: %w", err)
	}

	// MaybeReflect: evaluated before retrieval so a reflection produced this
	// turn is eligible for inclusion in this turn's prompt. A failed pass is
	// retried on the next qualifying turn and does not abort this one.
	if m.reflector != nil {
		m.reflector.NoteObservation(rec.Importance)
		if n, err := m.reflector.MaybeReflect(ctx); err != nil {
			m.logger.Warn("turn %s reflection failed: %v", turnID, err)
		} else if n > 0 {
			m.logger.Info("turn %s wrote %d reflections", turnID, n)
		}
	}

	// Retrieve
	memories, err := m.retriever.Retrieve(ctx, message, m.memoryBudget)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}

	// Assemble
	prompt, err := m.assembler.Assemble(m.persona, memories, m.buffer.Lines(), m.totalBudget)
	if err != nil {
		return "", fmt.Errorf("assemble: %w", err)
	}

	// Invoke
	callStart := time.Now()
	reply, err := m.mdl.Complete(ctx, prompt, m.replyMaxTokens)
	if el, ok := m.logger.(*logging.EngineLogger); ok {
		el.WithTurn(turnID).LogModelCall("complete", time.Since(callStart), err == nil, err)
	}
	if err != nil {
		return "", core.Externalf("complete", err)
	}

	// RecordResponse. The response observation counts toward the reflection
	// trigger like any other; the next qualifying turn picks it up.
	resp, err := m.record(ctx, m.agentName, reply)
	if err != nil {
		return reply, fmt.Errorf("record response: %w", err)
	}
	if m.reflector != nil {
		m.reflector.NoteObservation(resp.Importance)
	}

	m.logger.Debug("turn %s completed, %d memories in prompt", turnID, len(memories))
	return reply, nil
}

// record creates one observation all-or-nothing: both external elicitations
// (embedding, importance) must succeed before anything is persisted. The
// transcript buffer is only appended after the stream insert succeeds.
func (m *Manager) record(ctx context.Context, speaker, text string) (*core.Record, error) {
	memText := speaker + ": " + text

	emb, err := m.embedder.Embed(ctx, memText)
	if err != nil {
		return nil, core.Externalf("embed", err)
	}
	imp, err := m.mdl.ScoreImportance(ctx, memText)
	if err != nil {
		return nil, core.Externalf("score_importance", err)
	}

	now := m.now()
	rec := &core.Record{
		Text:       memText,
		Embedding:  emb,
		Kind:       core.KindObservation,
		Importance: imp,
		CreatedAt:  now,
	}
	id, err := m.stream.Insert(rec)
	if err != nil {
		return nil, err
	}
	rec.ID = id

	m.buffer.Append(speaker, text, now)
	return rec, nil
}
