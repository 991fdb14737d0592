package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/journalbuddy/backend/pkg/core"
	"github.com/journalbuddy/backend/pkg/core/types"
)

const (
	// GroqBaseURL is the default Groq OpenAI-compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"

	groqDefaultMaxTokens = 1024
)

// GroqProvider implements Client against Groq's Chat Completions API.
type GroqProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// GroqOption customizes a GroqProvider.
type GroqOption func(*GroqProvider)

// WithGroqBaseURL overrides the API endpoint (used by tests).
func WithGroqBaseURL(url string) GroqOption {
	return func(p *GroqProvider) { p.baseURL = url }
}

// WithGroqHTTPClient overrides the HTTP client.
func WithGroqHTTPClient(c *http.Client) GroqOption {
	return func(p *GroqProvider) { p.httpClient = c }
}

// NewGroq creates a Groq provider.
func NewGroq(apiKey string, opts ...GroqOption) *GroqProvider {
	p := &GroqProvider{
		apiKey:     apiKey,
		baseURL:    GroqBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *GroqProvider) Name() string { return "groq" }

// chatRequest is the wire shape of a Chat Completions request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Parameters  *types.JSONSchema `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Invoke sends a non-streaming tool-calling request.
func (p *GroqProvider) Invoke(ctx context.Context, req *Request) (*Response, error) {
	wireReq := p.buildRequest(req)

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.chatCompletionsURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.NewCollaboratorError("groq", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, p.parseError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parseChatResponse(respBody)
}

func (p *GroqProvider) buildRequest(req *Request) *chatRequest {
	out := &chatRequest{
		Model:       req.Model,
		Messages:    make([]chatMessage, 0, len(req.Messages)),
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if out.MaxTokens == 0 {
		out.MaxTokens = groqDefaultMaxTokens
	}

	for _, m := range req.Messages {
		cm := chatMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			wire := chatToolCall{ID: tc.ID, Type: "function"}
			wire.Function.Name = tc.Name
			wire.Function.Arguments = string(tc.Arguments)
			cm.ToolCalls = append(cm.ToolCalls, wire)
		}
		out.Messages = append(out.Messages, cm)
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	if len(out.Tools) > 0 {
		out.ToolChoice = "auto"
	}

	return out
}

func parseChatResponse(body []byte) (*Response, error) {
	var wire chatResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return &Response{}, nil
	}

	msg := wire.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: json.RawMessage(args),
		})
	}
	return out, nil
}

func (p *GroqProvider) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var wire chatErrorResponse
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Message != "" {
		errType := core.ErrCollaborator
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			errType = core.ErrAuthentication
		case http.StatusTooManyRequests:
			errType = core.ErrRateLimit
		case http.StatusBadRequest:
			errType = core.ErrInvalidRequest
		}
		return &core.Error{Type: errType, Message: wire.Error.Message, Code: wire.Error.Code}
	}

	return &core.Error{
		Type:    core.ErrCollaborator,
		Message: fmt.Sprintf("groq: unexpected status %d", resp.StatusCode),
	}
}

func (p *GroqProvider) chatCompletionsURL() string {
	return strings.TrimRight(p.baseURL, "/") + "/chat/completions"
}
