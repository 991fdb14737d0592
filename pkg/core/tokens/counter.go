// Package tokens provides token counting and context-window budgeting for
// model invocations.
package tokens

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Counter is the token-counting capability. The budgeting logic is written
// against this interface so the tokenizer can be swapped without touching it.
type Counter interface {
	// Count returns the approximate token count of text.
	Count(text string) int

	// Truncate cuts text to at most maxTokens tokens.
	Truncate(text string, maxTokens int) string
}

// TiktokenCounter counts with the cl100k_base encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the cl100k_base encoding.
func NewTiktokenCounter() (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

// Count returns the token count of text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate cuts text to at most maxTokens tokens.
func (c *TiktokenCounter) Truncate(text string, maxTokens int) string {
	if text == "" || maxTokens <= 0 {
		return ""
	}
	toks := c.enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return c.enc.Decode(toks[:maxTokens])
}

// HeuristicCounter approximates four characters per token. It keeps tests
// and degraded deployments independent of tokenizer data files.
type HeuristicCounter struct{}

const heuristicCharsPerToken = 4

// Count returns the approximate token count of text.
func (HeuristicCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := len(text) / heuristicCharsPerToken
	if len(text)%heuristicCharsPerToken != 0 {
		n++
	}
	return n
}

// Truncate cuts text to approximately maxTokens tokens.
func (HeuristicCounter) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	maxChars := maxTokens * heuristicCharsPerToken
	if len(text) <= maxChars {
		return text
	}
	// Do not split a multi-byte rune at the cut point.
	return strings.ToValidUTF8(text[:maxChars], "")
}
