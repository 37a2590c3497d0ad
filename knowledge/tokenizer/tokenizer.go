package tokenizer

import (
	"regexp"
	"unicode/utf8"
)

// Counter estimates how many model tokens a piece of text consumes.
// The orchestrator uses it to keep assembled context within budget.
type Counter interface {
	CountTokens(text string) int
}

var wordRegex = regexp.MustCompile(`\p{L}[\p{L}\p{M}]*|\p{N}+|[^\s]`)

// HeuristicCounter approximates token counts without a provider-specific
// codec: one token per word-like run, plus extra tokens for long words
// (BPE splits roughly every 4 characters).
type HeuristicCounter struct{}

// NewHeuristicCounter returns the default estimator.
func NewHeuristicCounter() *HeuristicCounter {
	return &HeuristicCounter{}
}

// CountTokens implements Counter.
func (h *HeuristicCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	count := 0
	for _, match := range wordRegex.FindAllString(text, -1) {
		n := utf8.RuneCountInString(match)
		count++
		if n > 4 {
			count += (n - 1) / 4
		}
	}
	return count
}
