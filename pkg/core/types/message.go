// Package types defines the message and tool shapes exchanged with the
// language-model collaborator.
package types

import "time"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single message in the in-flight conversation sent to the
// language model. Tool invocations are represented transiently as paired
// messages: an assistant message carrying ToolCalls, immediately followed by
// one RoleTool message per call echoing its ToolCallID.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID pairs a RoleTool result message with its originating call.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// System builds a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// User builds a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Assistant builds an assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolResult builds the result message paired with call id.
func ToolResult(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// Turn is one persisted utterance of either participant within a
// conversation. Turns are append-only and ordered by completion time.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryMessages converts persisted turns into model messages, oldest first.
func HistoryMessages(turns []Turn) []Message {
	msgs := make([]Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, Message{Role: t.Role, Content: t.Text})
	}
	return msgs
}
