package conversation

import (
	"fmt"
	"strings"

	"github.com/hupe1980/memstream/core"
	"github.com/hupe1980/memstream/token"
)

const (
	memoryHeader = "Relevant memories:"
	tailHeader   = "Conversation:"
)

// Assembler packs persona text, retrieved memories and the transcript tail
// into a prompt under a total unit budget. Priority is fixed: the persona is
// always included, memories next (in the retriever's rank order), then as much
// of the tail as fits, preferring the most recent lines.
type Assembler struct {
	counter token.Counter
}

// NewAssembler creates an Assembler using the same unit counter the retriever
// uses, so budget accounting is consistent end to end.
func NewAssembler(counter token.Counter) *Assembler {
	return &Assembler{counter: counter}
}

// Assemble builds the prompt text. It fails with core.ErrBudgetExceeded when
// the persona alone does not fit totalBudget; everything else degrades by
// dropping the lowest-priority content instead of failing.
func (a *Assembler) Assemble(persona string, memories []*core.Record, tail []Line, totalBudget int) (string, error) {
	remaining := totalBudget

	var sections []string
	if persona != "" {
		units := a.counter.Count(persona)
		if units > remaining {
			return "", fmt.Errorf("%w: persona is %d units, budget %d", core.ErrBudgetExceeded, units, totalBudget)
		}
		sections = append(sections, persona)
		remaining -= units
	}

	if section, used := a.memorySection(memories, remaining); section != "" {
		sections = append(sections, section)
		remaining -= used
	}

	if section := a.tailSection(tail, remaining); section != "" {
		sections = append(sections, section)
	}

	return strings.Join(sections, "\n\n"), nil
}

// memorySection renders retrieved memories as a bulleted list in rank order.
// The retriever already bounded the raw text; the formatted lines are counted
// again here so the header and bullets cannot push the prompt over budget.
func (a *Assembler) memorySection(memories []*core.Record, budget int) (string, int) {
	if len(memories) == 0 {
		return "", 0
	}
	used := a.counter.Count(memoryHeader)
	if used > budget {
		return "", 0
	}
	lines := []string{memoryHeader}
	for _, rec := range memories {
		line := "- " + rec.Text
		units := a.counter.Count(line)
		if used+units > budget {
			break
		}
		lines = append(lines, line)
		used += units
	}
	if len(lines) == 1 {
		return "", 0
	}
	return strings.Join(lines, "\n"), used
}

// tailSection keeps the most recent transcript lines that fit and renders the
// kept lines chronologically.
func (a *Assembler) tailSection(tail []Line, budget int) string {
	if len(tail) == 0 {
		return ""
	}
	used := a.counter.Count(tailHeader)
	if used > budget {
		return ""
	}

	// Walk newest to oldest deciding what to keep.
	var kept []string
	for i := len(tail) - 1; i >= 0; i-- {
		line := tail[i].Speaker + ": " + tail[i].Text
		units := a.counter.Count(line)
		if used+units > budget {
			break
		}
		kept = append(kept, line)
		used += units
	}
	if len(kept) == 0 {
		return ""
	}

	// Reverse back to chronological order.
	lines := make([]string, 0, len(kept)+1)
	lines = append(lines, tailHeader)
	for i := len(kept) - 1; i >= 0; i-- {
		lines = append(lines, kept[i])
	}
	return strings.Join(lines, "\n")
}
