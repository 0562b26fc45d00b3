// Package memstream provides a high-level façade over the memory engine
// (stream, scorer, retriever, reflection and conversation orchestration)
// enabling rapid construction of agents with persistent, scored memory. Most
// applications interact with this package by:
//  1. Creating an Agent via New() with a model and an embedder (optionally
//     overriding default in-memory services)
//  2. Calling Converse() once per incoming message
//
// The façade wires conversation.Manager with safe local defaults: an
// in-memory stream, equal scoring weights and a word-based unit counter.
// Production deployments typically supply a tiktoken counter, a vector index,
// durable stream persistence and a structured logger.
package memstream

import (
	"context"

	"github.com/hupe1980/memstream/conversation"
	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/logging"
	"github.com/hupe1980/memstream/model"
	"github.com/hupe1980/memstream/reflection"
	"github.com/hupe1980/memstream/retrieval"
	"github.com/hupe1980/memstream/scoring"
	"github.com/hupe1980/memstream/stream"
	"github.com/hupe1980/memstream/token"
)

// Options configures the Agent façade.
type Options struct {
	// Stream overrides the default in-memory stream (e.g. one restored from a
	// snapshot).
	Stream core.Stream
	// Counter overrides the default word counter; supply a tiktoken counter
	// to budget in real model tokens.
	Counter token.Counter
	// Index enables vector-index candidate shortlisting on large streams.
	Index core.VectorIndex
	// MaxCandidates bounds the shortlist when Index is set.
	MaxCandidates int

	// Persona is the fixed system text included in every prompt.
	Persona string
	// AgentName labels the agent's own transcript lines.
	AgentName string
	// TotalBudget bounds the assembled prompt in counter units.
	TotalBudget int
	// MemoryBudget bounds the retrieved-memory portion of the prompt.
	MemoryBudget int
	// ReplyMaxTokens bounds the model completion.
	ReplyMaxTokens int

	// Weights are the relative recency/importance/relevance weights.
	Weights scoring.Weights
	// DecayFactor is the per-hour recency decay base.
	DecayFactor float64
	// ReflectionThreshold is the cumulative importance that triggers
	// reflection. Zero disables reflection entirely.
	ReflectionThreshold int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Agent is the high-level façade aggregating one memory stream and its
// conversation manager.
type Agent struct {
	stream  core.Stream
	manager *conversation.Manager
}

// New creates an Agent with optional overrides. Any unset service is
// initialized with a local in-memory implementation.
func New(mdl model.Model, embedder embedding.Embedder, optFns ...func(o *Options)) *Agent {
	opts := Options{
		Counter:             token.WordCounter{},
		AgentName:           "agent",
		TotalBudget:         2048,
		MemoryBudget:        512,
		ReplyMaxTokens:      512,
		Weights:             scoring.DefaultWeights(),
		DecayFactor:         scoring.DefaultDecayFactor,
		ReflectionThreshold: 100,
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if el, ok := opts.Logger.(*logging.EngineLogger); ok {
		opts.Logger = el.WithStream(opts.AgentName)
	}
	if opts.Stream == nil {
		opts.Stream = stream.NewInMemoryStream(func(o *stream.Options) {
			o.Index = opts.Index
			o.Logger = opts.Logger
		})
	}

	scorer := scoring.New(func(o *scoring.Options) {
		o.DecayFactor = opts.DecayFactor
		o.Weights = opts.Weights
	})

	retriever := retrieval.New(opts.Stream, embedder, opts.Counter, func(o *retrieval.Options) {
		o.Scorer = scorer
		o.Index = opts.Index
		o.MaxCandidates = opts.MaxCandidates
		o.Logger = opts.Logger
	})

	var reflector *reflection.Engine
	if opts.ReflectionThreshold > 0 {
		reflector = reflection.New(opts.Stream, retriever, mdl, embedder, func(o *reflection.Options) {
			o.Threshold = opts.ReflectionThreshold
			o.Logger = opts.Logger
		})
	}

	manager := conversation.NewManager(
		opts.Stream,
		retriever,
		reflector,
		conversation.NewAssembler(opts.Counter),
		mdl,
		embedder,
		func(o *conversation.Options) {
			o.Persona = opts.Persona
			o.AgentName = opts.AgentName
			o.TotalBudget = opts.TotalBudget
			o.MemoryBudget = opts.MemoryBudget
			o.ReplyMaxTokens = opts.ReplyMaxTokens
			o.Logger = opts.Logger
		},
	)

	return &Agent{stream: opts.Stream, manager: manager}
}

// Converse processes one incoming message and returns the agent's reply.
func (a *Agent) Converse(ctx context.Context, speaker, message string) (string, error) {
	return a.manager.Converse(ctx, speaker, message)
}

// Stream exposes the agent's memory stream, e.g. for snapshot persistence.
func (a *Agent) Stream() core.Stream { return a.stream }

// Manager exposes the underlying conversation manager.
func (a *Agent) Manager() *conversation.Manager { return a.manager }
