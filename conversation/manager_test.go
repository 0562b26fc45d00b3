package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/internal/testutil"
	"github.com/hupe1980/memstream/model"
	"github.com/hupe1980/memstream/reflection"
	"github.com/hupe1980/memstream/retrieval"
	"github.com/hupe1980/memstream/stream"
	"github.com/hupe1980/memstream/token"
)

type managerHarness struct {
	stream  *stream.InMemoryStream
	mdl     *model.MockModel
	manager *Manager
	clock   *testutil.Clock
}

func newManagerHarness(t *testing.T, extra ...func(o *Options)) *managerHarness {
	t.Helper()
	s := stream.NewInMemoryStream()
	mdl := model.NewMockModel("test")
	embedder := embedding.NewHashEmbedder()
	clock := testutil.NewClock(testutil.Epoch)
	counter := token.WordCounter{}

	retriever := retrieval.New(s, embedder, counter, func(o *retrieval.Options) {
		o.Now = clock.Now
	})
	reflector := reflection.New(s, retriever, mdl, embedder, func(o *reflection.Options) {
		o.Threshold = 1000 // effectively off unless a test lowers it
		o.Now = clock.Now
	})
	mgr := NewManager(s, retriever, reflector, NewAssembler(counter), mdl, embedder, func(o *Options) {
		o.Persona = "You are a terse test agent."
		o.Now = clock.Now
		for _, fn := range extra {
			fn(o)
		}
	})
	return &managerHarness{stream: s, mdl: mdl, manager: mgr, clock: clock}
}

func TestManager_TurnRecordsBothSides(t *testing.T) {
	h := newManagerHarness(t)

	reply, err := h.manager.Converse(context.Background(), "bob", "hi")
	require.NoError(t, err)
	require.NotEmpty(t, reply)

	all := h.stream.All()
	require.Len(t, all, 2)
	assert.Equal(t, "bob: hi", all[0].Text)
	assert.Equal(t, core.KindObservation, all[0].Kind)
	assert.True(t, strings.HasPrefix(all[1].Text, "agent: "))

	lines := h.manager.Buffer().Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "bob", lines[0].Speaker)
	assert.Equal(t, "agent", lines[1].Speaker)
}

func TestManager_SecondTurnRecallsFirst(t *testing.T) {
	h := newManagerHarness(t)

	_, err := h.manager.Converse(context.Background(), "bob", "my cat is named Whiskers")
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	_, err = h.manager.Converse(context.Background(), "bob", "what is my cat named")
	require.NoError(t, err)

	// the second prompt must have surfaced the first turn's observation
	require.Len(t, h.mdl.Prompts(), 2)
	second := h.mdl.Prompts()[1]
	assert.Contains(t, second, "Relevant memories:")
	assert.Contains(t, second, "bob: my cat is named Whiskers")
	assert.Contains(t, second, "Conversation:")
}

func TestManager_EmbedFailureAbortsBeforePersisting(t *testing.T) {
	h := newManagerHarness(t)
	failing := &failingEmbedder{}
	s := h.stream

	mgr := NewManager(s,
		retrieval.New(s, failing, token.WordCounter{}),
		nil,
		NewAssembler(token.WordCounter{}),
		h.mdl,
		failing,
	)

	_, err := mgr.Converse(context.Background(), "bob", "hi")
	require.Error(t, err)
	assert.True(t, core.IsExternal(err))
	assert.Zero(t, s.Len())
	assert.Zero(t, mgr.Buffer().Len())
}

func TestManager_ImportanceFailureAbortsBeforePersisting(t *testing.T) {
	h := newManagerHarness(t)
	h.mdl.FailWith(errors.New("rate limited"))

	_, err := h.manager.Converse(context.Background(), "bob", "hi")
	require.Error(t, err)
	assert.True(t, core.IsExternal(err))
	assert.Zero(t, h.stream.Len())
	assert.Zero(t, h.manager.Buffer().Len())
}

func TestManager_ReflectionFailureDoesNotAbortTurn(t *testing.T) {
	h := newManagerHarness(t)
	// make reflection due immediately but unable to synthesize
	s := h.stream
	embedder := embedding.NewHashEmbedder()
	counter := token.WordCounter{}
	brokenModel := model.NewMockModel("broken-synth")

	retriever := retrieval.New(s, embedder, counter, func(o *retrieval.Options) {
		o.Now = h.clock.Now
	})
	reflector := reflection.New(s, retriever, &synthFailModel{MockModel: brokenModel}, embedder, func(o *reflection.Options) {
		o.Threshold = 1
		o.Now = h.clock.Now
	})
	mgr := NewManager(s, retriever, reflector, NewAssembler(counter), brokenModel, embedder, func(o *Options) {
		o.Now = h.clock.Now
	})

	reply, err := mgr.Converse(context.Background(), "bob", "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.Equal(t, 2, s.Len(), "only the two turn observations are recorded")
	assert.Positive(t, reflector.Pending(), "failed pass keeps the trigger armed")
}

func TestManager_ReflectionVisibleWithinSameTurn(t *testing.T) {
	h := newManagerHarness(t)
	s := h.stream
	embedder := embedding.NewHashEmbedder()
	counter := token.WordCounter{}

	h.mdl.SetInsights("bob keeps asking about cats")
	retriever := retrieval.New(s, embedder, counter, func(o *retrieval.Options) {
		o.Now = h.clock.Now
	})
	reflector := reflection.New(s, retriever, h.mdl, embedder, func(o *reflection.Options) {
		o.Threshold = 1
		o.Now = h.clock.Now
	})
	mgr := NewManager(s, retriever, reflector, NewAssembler(counter), h.mdl, embedder, func(o *Options) {
		o.Now = h.clock.Now
	})

	_, err := mgr.Converse(context.Background(), "bob", "lots of cat questions")
	require.NoError(t, err)

	// observation, reflection, response
	all := s.All()
	require.Len(t, all, 3)
	assert.Equal(t, core.KindReflection, all[1].Kind)
	assert.Equal(t, "bob keeps asking about cats", all[1].Text)
}

func TestManager_ResponseImportanceFeedsReflectionTrigger(t *testing.T) {
	s := stream.NewInMemoryStream()
	mdl := model.NewMockModel("test")
	mdl.SetInsights("bob and the agent keep discussing the launch")
	mdl.SetDefaultImportance(9) // applies to the agent's responses
	mdl.SetImportance("bob: minor question", 1)
	mdl.SetImportance("bob: another minor question", 1)

	clock := testutil.NewClock(testutil.Epoch)
	embedder := embedding.NewHashEmbedder()
	counter := token.WordCounter{}
	retriever := retrieval.New(s, embedder, counter, func(o *retrieval.Options) {
		o.Now = clock.Now
	})
	reflector := reflection.New(s, retriever, mdl, embedder, func(o *reflection.Options) {
		o.Threshold = 10
		o.Now = clock.Now
	})
	mgr := NewManager(s, retriever, reflector, NewAssembler(counter), mdl, embedder, func(o *Options) {
		o.Now = clock.Now
	})

	// First turn: incoming (1) plus response (9) reach the threshold even
	// though the incoming side alone never would.
	_, err := mgr.Converse(context.Background(), "bob", "minor question")
	require.NoError(t, err)
	assert.Equal(t, 10, reflector.Pending())

	clock.Advance(time.Minute)
	_, err = mgr.Converse(context.Background(), "bob", "another minor question")
	require.NoError(t, err)

	var reflections int
	for _, rec := range s.All() {
		if rec.Kind == core.KindReflection {
			reflections++
		}
	}
	assert.Positive(t, reflections, "trigger must count response observations")
	assert.Equal(t, 9, reflector.Pending(), "only the post-reset response remains pending")
}

func TestManager_SerializesTurns(t *testing.T) {
	h := newManagerHarness(t, func(o *Options) { o.Now = time.Now })

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := h.manager.Converse(context.Background(), "bob", "ping")
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
	assert.Equal(t, 16, h.stream.Len())
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("embedder down")
}

func (failingEmbedder) Dimensions() int { return 0 }

// synthFailModel completes normally but fails synthesis, so reflection passes
// fail while the surrounding turn succeeds.
type synthFailModel struct {
	*model.MockModel
}

func (synthFailModel) Synthesize(context.Context, []string) ([]string, error) {
	return nil, errors.New("synthesis unavailable")
}
