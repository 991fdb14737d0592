// Package llm defines the tool-calling language-model collaborator
// interface and its providers.
package llm

import (
	"context"

	"github.com/journalbuddy/backend/pkg/core/types"
)

// Request is a single model invocation.
type Request struct {
	Model       string
	Messages    []types.Message
	Tools       []types.Tool
	MaxTokens   int
	Temperature *float64
}

// Response is the model's reply: free text, tool calls, or (degenerately)
// neither.
type Response struct {
	Text      string
	ToolCalls []types.ToolCall
}

// Empty reports a degenerate response with no text and no tool calls.
func (r *Response) Empty() bool {
	return r == nil || (r.Text == "" && len(r.ToolCalls) == 0)
}

// Client is the language-model collaborator.
type Client interface {
	// Name returns the provider identifier.
	Name() string

	// Invoke sends the message list and tool schema and returns the
	// model's response.
	Invoke(ctx context.Context, req *Request) (*Response, error)
}
