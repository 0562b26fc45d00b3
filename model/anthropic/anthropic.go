// Package anthropic provides a model wrapper for the Anthropic Claude API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/model"
)

// Options configures the Anthropic model adapter (model id, max tokens,
// temperature, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

// Interface compliance (compile-time assertion)
var _ model.Model = (*Model)(nil)

// NewModel creates a new Anthropic model using the official client.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
}

// Complete generates a completion for prompt, bounded by maxTokens.
func (m *Model) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	limit := m.opts.MaxTokens
	if maxTokens > 0 {
		limit = int64(maxTokens)
	}
	return m.message(ctx, prompt, limit, m.opts.Temperature)
}

// ScoreImportance rates the salience of a memory text on the 1-10 scale. Uses
// temperature 0 so ratings are stable across calls.
func (m *Model) ScoreImportance(ctx context.Context, text string) (int, error) {
	resp, err := m.message(ctx, model.ImportancePrompt(text), 16, 0)
	if err != nil {
		return 0, err
	}
	return model.ParseImportance(resp, core.MinImportance, core.MaxImportance)
}

// Synthesize turns memory statements into higher-level insight statements.
func (m *Model) Synthesize(ctx context.Context, statements []string) ([]string, error) {
	resp, err := m.message(ctx, model.SynthesisPrompt(statements), m.opts.MaxTokens, m.opts.Temperature)
	if err != nil {
		return nil, err
	}
	return model.SplitInsights(resp), nil
}

func (m *Model) message(ctx context.Context, prompt string, maxTokens int64, temperature float64) (string, error) {
	resp, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       m.opts.Model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.AsText().Text)
		}
	}
	return b.String(), nil
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}
