package memstream

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/embedding"
	"github.com/hupe1980/memstream/logging"
	"github.com/hupe1980/memstream/model"
	"github.com/hupe1980/memstream/stream"
)

func TestAgent_ConverseAccumulatesMemory(t *testing.T) {
	agent := New(model.NewMockModel("test"), embedding.NewHashEmbedder(), func(o *Options) {
		o.Persona = "You are a helpful assistant."
	})

	ctx := context.Background()
	reply, err := agent.Converse(ctx, "bob", "I moved to Lisbon last month")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)

	_, err = agent.Converse(ctx, "bob", "where do I live now?")
	require.NoError(t, err)

	assert.Equal(t, 4, agent.Stream().Len())
	for _, rec := range agent.Stream().All() {
		assert.Equal(t, core.KindObservation, rec.Kind)
	}
}

func TestAgent_SnapshotRoundTrip(t *testing.T) {
	mdl := model.NewMockModel("test")
	embedder := embedding.NewHashEmbedder()
	agent := New(mdl, embedder)

	ctx := context.Background()
	_, err := agent.Converse(ctx, "bob", "remember the launch is on Friday")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, stream.Encode(&buf, agent.Stream()))

	restored, err := stream.Decode(&buf)
	require.NoError(t, err)

	revived := New(mdl, embedder, func(o *Options) {
		o.Stream = restored
	})
	assert.Equal(t, 2, revived.Stream().Len())

	_, err = revived.Converse(ctx, "bob", "when is the launch?")
	require.NoError(t, err)
	assert.Equal(t, 4, revived.Stream().Len())
}

func TestAgent_ReflectionDisabledByZeroThreshold(t *testing.T) {
	mdl := model.NewMockModel("test")
	mdl.SetInsights("should never be written")
	mdl.SetDefaultImportance(10)

	agent := New(mdl, embedding.NewHashEmbedder(), func(o *Options) {
		o.ReflectionThreshold = 0
	})

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := agent.Converse(ctx, "bob", "a very important announcement")
		require.NoError(t, err)
	}
	for _, rec := range agent.Stream().All() {
		assert.Equal(t, core.KindObservation, rec.Kind)
	}
}

func TestAgent_EngineLoggerCarriesStreamAndTurn(t *testing.T) {
	mdl := model.NewMockModel("test")
	mdl.SetInsights("bob keeps repeating himself")
	mdl.SetDefaultImportance(10)

	var buf bytes.Buffer
	agent := New(mdl, embedding.NewHashEmbedder(), func(o *Options) {
		o.AgentName = "mira"
		o.ReflectionThreshold = 15
		o.Logger = logging.NewLogger(&logging.LoggerConfig{
			Level:  logging.LogLevelDebug,
			Format: "json",
			Output: &buf,
		})
	})

	ctx := context.Background()
	_, err := agent.Converse(ctx, "bob", "first important message")
	require.NoError(t, err)
	_, err = agent.Converse(ctx, "bob", "second important message")
	require.NoError(t, err)

	out := buf.String()
	for _, want := range []string{
		"Model call completed",
		"Retrieval completed",
		"Reflection completed",
		`"stream_id":"mira"`,
		`"turn_id":`,
	} {
		assert.Contains(t, out, want)
	}
}

func TestAgent_ReflectionFiresThroughFacade(t *testing.T) {
	mdl := model.NewMockModel("test")
	mdl.SetInsights("bob repeats himself")
	mdl.SetDefaultImportance(10)

	agent := New(mdl, embedding.NewHashEmbedder(), func(o *Options) {
		o.ReflectionThreshold = 15
	})

	ctx := context.Background()
	_, err := agent.Converse(ctx, "bob", "first important message")
	require.NoError(t, err)
	_, err = agent.Converse(ctx, "bob", "second important message")
	require.NoError(t, err)

	var reflections int
	for _, rec := range agent.Stream().All() {
		if rec.Kind == core.KindReflection {
			reflections++
		}
	}
	assert.Positive(t, reflections)
}
