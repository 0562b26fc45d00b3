// Package openai provides a model wrapper for the OpenAI Chat Completions API
// using the official client.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/model"
)

// Options configure the OpenAI model adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Model wraps the OpenAI Chat Completions API behind the generic model.Model interface.
type Model struct {
	client *openai.Client
	opts   Options
}

// Interface compliance (compile-time assertion)
var _ model.Model = (*Model)(nil)

// NewModel creates a new OpenAI model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	client := openai.NewClient()
	return NewModelFromClient(&client, optFns...)
}

// NewModelFromClient creates a new OpenAI model from an existing client.
func NewModelFromClient(client *openai.Client, optFns ...func(o *Options)) *Model {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

// Complete generates a completion for prompt, bounded by maxTokens.
func (m *Model) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	limit := m.opts.MaxCompletionTokens
	if maxTokens > 0 {
		limit = int64(maxTokens)
	}
	return m.chat(ctx, prompt, limit, m.opts.Temperature)
}

// ScoreImportance rates the salience of a memory text on the 1-10 scale. Uses
// temperature 0 so ratings are stable across calls.
func (m *Model) ScoreImportance(ctx context.Context, text string) (int, error) {
	resp, err := m.chat(ctx, model.ImportancePrompt(text), 16, 0)
	if err != nil {
		return 0, err
	}
	return model.ParseImportance(resp, core.MinImportance, core.MaxImportance)
}

// Synthesize turns memory statements into higher-level insight statements.
func (m *Model) Synthesize(ctx context.Context, statements []string) ([]string, error) {
	resp, err := m.chat(ctx, model.SynthesisPrompt(statements), m.opts.MaxCompletionTokens, m.opts.Temperature)
	if err != nil {
		return nil, err
	}
	return model.SplitInsights(resp), nil
}

func (m *Model) chat(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error) {
	resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: m.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(maxTokens),
		Temperature:         openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Info returns metadata describing this OpenAI model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "openai"}
}
