package model

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the language-model capability injected into the engine. Complete
// drives conversation turns; ScoreImportance and Synthesize are the two
// auxiliary elicitations the memory system performs. Implementations never
// retry internally; failures propagate to the turn boundary.
type Model interface {
	// Complete generates a completion for prompt, bounded by maxTokens.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// ScoreImportance rates the salience of a memory text on the integer
	// scale [core.MinImportance, core.MaxImportance].
	ScoreImportance(ctx context.Context, text string) (int, error)

	// Synthesize turns a set of memory statements into a small number of
	// higher-level insight statements.
	Synthesize(ctx context.Context, statements []string) ([]string, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ImportancePrompt renders the shared importance-elicitation prompt used by
// the provider adapters, asking for a bare integer rating.
func ImportancePrompt(text string) string {
	return fmt.Sprintf(`On the scale of 1 to 10, where 1 is purely mundane (e.g., brushing teeth, making bed) and 10 is extremely poignant (e.g., a break up, college acceptance), rate the likely poignancy of the following piece of memory.

Memory: %s

Respond with a single integer and nothing else.`, text)
}

// SynthesisPrompt renders the shared reflection-synthesis prompt: numbered
// statements followed by an instruction to emit one insight per line.
func SynthesisPrompt(statements []string) string {
	var b strings.Builder
	b.WriteString("Statements:\n")
	for i, s := range statements {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nWhat are the high-level insights you can infer from the above statements? Respond with at most five insights, one per line, without numbering.")
	return b.String()
}

// ParseImportance extracts the first integer from a model response and clamps
// it to [min, max]. Models occasionally wrap the rating in prose; anything
// without a digit is an error.
func ParseImportance(resp string, min, max int) (int, error) {
	start := -1
	for i, r := range resp {
		if unicode.IsDigit(r) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, fmt.Errorf("no integer in importance response %q", resp)
	}
	end := start
	for end < len(resp) && resp[end] >= '0' && resp[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(resp[start:end])
	if err != nil {
		return 0, fmt.Errorf("parse importance response %q: %w", resp, err)
	}
	if n < min {
		n = min
	}
	if n > max {
		n = max
	}
	return n, nil
}

// SplitInsights splits a synthesis response into individual insight
// statements, dropping blank lines and leading list markers.
func SplitInsights(resp string) []string {
	var insights []string
	for _, line := range strings.Split(resp, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. )")
		line = strings.TrimSpace(line)
		if line != "" {
			insights = append(insights, line)
		}
	}
	return insights
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
type MockModel struct {
	info              Info
	responses         map[string]string
	importance        map[string]int
	defaultImportance int
	insights          []string
	prompts           []string
	err               error
}

// Interface compliance (compile-time assertion)
var _ Model = (*MockModel)(nil)

// NewMockModel constructs a MockModel with a default importance of 5.
func NewMockModel(name string) *MockModel {
	return &MockModel{
		info:              Info{Name: name, Provider: "mock"},
		responses:         make(map[string]string),
		importance:        make(map[string]int),
		defaultImportance: 5,
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) { m.responses[prompt] = response }

// SetImportance fixes the rating returned for an exact memory text.
func (m *MockModel) SetImportance(text string, score int) { m.importance[text] = score }

// SetDefaultImportance fixes the rating returned for unregistered texts.
func (m *MockModel) SetDefaultImportance(score int) { m.defaultImportance = score }

// SetInsights fixes the statements returned by Synthesize.
func (m *MockModel) SetInsights(insights ...string) { m.insights = insights }

// FailWith makes every subsequent call return err (nil restores normal
// operation).
func (m *MockModel) FailWith(err error) { m.err = err }

// Prompts returns every prompt passed to Complete, in call order.
func (m *MockModel) Prompts() []string { return m.prompts }

// Complete implements Model.
func (m *MockModel) Complete(_ context.Context, prompt string, _ int) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.prompts = append(m.prompts, prompt)
	if resp, ok := m.responses[prompt]; ok {
		return resp, nil
	}
	return "Mock response to: " + prompt, nil
}

// ScoreImportance implements Model.
func (m *MockModel) ScoreImportance(_ context.Context, text string) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if score, ok := m.importance[text]; ok {
		return score, nil
	}
	return m.defaultImportance, nil
}

// Synthesize implements Model.
func (m *MockModel) Synthesize(_ context.Context, _ []string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.insights, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
