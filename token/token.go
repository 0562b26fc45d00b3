// Package token defines the unit counter shared by retrieval and context
// assembly so budget accounting is consistent across both, plus two
// implementations: a real BPE tokenizer (cl100k_base via tiktoken-go) and a
// trivial word counter for tests.
package token

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures text in model token-equivalent units. The retriever and
// the context assembler must share one Counter instance so their budgets mean
// the same thing.
type Counter interface {
	Count(text string) int
}

// DefaultEncoding is the BPE encoding used by current OpenAI chat and
// embedding models.
const DefaultEncoding = "cl100k_base"

// TiktokenCounter counts tokens with a real BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// Interface compliance (compile-time assertion)
var _ Counter = (*TiktokenCounter)(nil)

// TiktokenOptions configure the tokenizer.
type TiktokenOptions struct {
	Encoding string
}

// NewTiktokenCounter loads the BPE encoding (cached on disk after first use).
func NewTiktokenCounter(optFns ...func(o *TiktokenOptions)) (*TiktokenCounter, error) {
	opts := TiktokenOptions{Encoding: DefaultEncoding}
	for _, fn := range optFns {
		fn(&opts)
	}
	enc, err := tiktoken.GetEncoding(opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", opts.Encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the number of BPE tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// WordCounter counts whitespace-separated words. Deterministic and dependency
// free, which makes budget arithmetic in tests easy to reason about.
type WordCounter struct{}

// Interface compliance (compile-time assertion)
var _ Counter = WordCounter{}

// Count returns the number of whitespace-separated fields in text.
func (WordCounter) Count(text string) int { return len(strings.Fields(text)) }
