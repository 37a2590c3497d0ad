// Package tiktoken implements tokenizer.Counter with a real BPE codec,
// giving exact token counts for OpenAI-family models instead of the
// default heuristic estimate.
package tiktoken

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/mathsage/mathsage/knowledge/tokenizer"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens with a tiktoken encoding.
type Counter struct {
	codec *tiktoken.Tiktoken
}

var _ tokenizer.Counter = (*Counter)(nil)

// New creates a counter for the named encoding, e.g. "cl100k_base".
// An empty name selects cl100k_base.
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = defaultEncoding
	}
	codec, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %q: %w", encoding, err)
	}
	return &Counter{codec: codec}, nil
}

// ForModel creates a counter using the encoding registered for a model
// name, e.g. "gpt-4o-mini".
func ForModel(model string) (*Counter, error) {
	codec, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("load encoding for model %q: %w", model, err)
	}
	return &Counter{codec: codec}, nil
}

// CountTokens implements tokenizer.Counter.
func (c *Counter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	return len(c.codec.Encode(text, nil, nil))
}
