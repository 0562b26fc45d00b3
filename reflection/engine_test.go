package reflection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/internal/testutil"
	"github.com/hupe1980/memstream/model"
	"github.com/hupe1980/memstream/retrieval"
	"github.com/hupe1980/memstream/stream"
	"github.com/hupe1980/memstream/token"
)

type harness struct {
	stream *stream.InMemoryStream
	mdl    *model.MockModel
	engine *Engine
	clock  *testutil.Clock
}

func newHarness(t *testing.T, threshold int, extra ...func(o *Options)) *harness {
	t.Helper()
	s := stream.NewInMemoryStream()
	mdl := model.NewMockModel("test")
	embedder := embedding.NewHashEmbedder()
	clock := testutil.NewClock(testutil.Epoch)
	retriever := retrieval.New(s, embedder, token.WordCounter{}, func(o *retrieval.Options) {
		o.Now = clock.Now
	})
	optFns := append([]func(o *Options){func(o *Options) {
		o.Threshold = threshold
		o.Now = clock.Now
	}}, extra...)
	engine := New(s, retriever, mdl, embedder, optFns...)
	return &harness{stream: s, mdl: mdl, engine: engine, clock: clock}
}

// seed inserts observations one minute apart and feeds their importance to the
// trigger, the way a conversation turn would.
func (h *harness) seed(t *testing.T, importance int, texts ...string) {
	t.Helper()
	for _, text := range texts {
		h.clock.Advance(time.Minute)
		rec := testutil.NewRecordBuilder(text).
			Importance(importance).
			CreatedAt(h.clock.Now()).
			Build()
		_, err := h.stream.Insert(rec)
		require.NoError(t, err)
		h.engine.NoteObservation(importance)
	}
}

func TestEngine_FiresAtThresholdAndResets(t *testing.T) {
	h := newHarness(t, 20)
	h.mdl.SetInsights("the user is planning a long trip")
	h.mdl.SetDefaultImportance(7)
	h.seed(t, 7,
		"alice: I bought hiking boots",
		"alice: I renewed my passport",
		"alice: I booked a flight to Chile",
	)

	require.True(t, h.engine.Due())
	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, h.engine.Pending())

	all := h.stream.All()
	require.Len(t, all, 4)
	ref := all[3]
	assert.Equal(t, core.KindReflection, ref.Kind)
	assert.Equal(t, "the user is planning a long trip", ref.Text)
	assert.Equal(t, 7, ref.Importance)
	require.NotEmpty(t, ref.SourceIDs)
	for _, src := range ref.SourceIDs {
		assert.Less(t, src, ref.ID, "provenance must point strictly backwards")
	}
}

func TestEngine_BelowThresholdDoesNothing(t *testing.T) {
	h := newHarness(t, 100)
	h.mdl.SetInsights("unused")
	h.seed(t, 3, "alice: minor note")

	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, h.engine.Pending())
	assert.Equal(t, 1, h.stream.Len())
}

func TestEngine_SecondFiringIsIdempotent(t *testing.T) {
	h := newHarness(t, 10)
	h.mdl.SetInsights("insight")
	h.seed(t, 8, "alice: big news", "alice: more big news")

	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	countAfterFirst := h.stream.Len()

	// the counter is zero now, so a second call writes nothing
	n, err = h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, countAfterFirst, h.stream.Len())
}

func TestEngine_FailureKeepsCounterAndWritesNothing(t *testing.T) {
	h := newHarness(t, 10)
	h.seed(t, 8, "alice: big news", "alice: more big news")
	pending := h.engine.Pending()

	h.mdl.FailWith(errors.New("model unavailable"))
	_, err := h.engine.MaybeReflect(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsExternal(err))
	assert.Equal(t, pending, h.engine.Pending(), "failed pass must not reset the trigger")
	assert.Equal(t, 2, h.stream.Len(), "no partial record may be written")

	// the same pass succeeds once the model recovers
	h.mdl.FailWith(nil)
	h.mdl.SetInsights("insight after retry")
	h.clock.Advance(time.Minute)
	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, h.engine.Pending())
}

func TestEngine_NoInsightsKeepsCounter(t *testing.T) {
	h := newHarness(t, 10) // mock returns no insights by default
	h.seed(t, 8, "alice: big news", "alice: more big news")
	pending := h.engine.Pending()

	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, pending, h.engine.Pending())
	assert.Equal(t, 2, h.stream.Len())
}

func TestEngine_CapsInsights(t *testing.T) {
	h := newHarness(t, 10, func(o *Options) { o.MaxInsights = 2 })
	h.mdl.SetInsights("one", "two", "three", "four")
	h.mdl.SetDefaultImportance(6)
	h.seed(t, 8, "alice: big news", "alice: more big news")

	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 4, h.stream.Len())
}

func TestEngine_ReflectionsFeedLaterReflections(t *testing.T) {
	h := newHarness(t, 10)
	h.mdl.SetInsights("alice is preparing for something important")
	h.mdl.SetDefaultImportance(9)
	h.seed(t, 6, "alice: studied all night", "alice: skipped the party")

	_, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	firstReflectionID := uint64(h.stream.Len())

	h.mdl.SetInsights("alice has an exam coming up")
	h.seed(t, 6, "alice: bought index cards", "alice: asked about the exam hall")

	n, err := h.engine.MaybeReflect(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	second := h.stream.All()[h.stream.Len()-1]
	assert.Contains(t, second.SourceIDs, firstReflectionID,
		"second reflection should consult the first")
}
