// Package protocol defines the JSON control messages exchanged over a
// live conversation websocket. Binary frames carry audio; text frames
// carry one Message each.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Inbound message types.
const (
	TypeInterrupt = "interrupt"
	TypeSpeechEnd = "speech_end"
	TypePing      = "ping"
)

// Outbound message types.
const (
	TypeConnected         = "connected"
	TypeReady             = "ready"
	TypeUserTranscript    = "user_transcript"
	TypeInterimTranscript = "interim_transcript"
	TypeAssistantThinking = "assistant_thinking"
	TypeAssistantSpeaking = "assistant_speaking"
	TypeAssistantText     = "assistant_text"
	TypeToolCall          = "tool_call"
	TypeEmotion           = "emotion"
	TypeAssistantDone     = "assistant_done"
	TypeInterrupted       = "interrupted"
	TypeConversationEnded = "conversation_ended"
	TypeError             = "error"
	TypePong              = "pong"
)

// Message is the wire shape of a control frame.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound is a parsed client control frame.
type Inbound struct {
	Type string

	// Transcript is set for speech_end: a client-side transcript that
	// commits the utterance without waiting for silence.
	Transcript string
}

// ParseInbound decodes a client text frame.
func ParseInbound(raw []byte) (Inbound, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Inbound{}, fmt.Errorf("malformed control frame: %w", err)
	}

	in := Inbound{Type: msg.Type}
	switch msg.Type {
	case TypeInterrupt, TypePing:
	case TypeSpeechEnd:
		if len(msg.Data) > 0 {
			var data struct {
				Transcript string `json:"transcript"`
			}
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				return Inbound{}, fmt.Errorf("malformed speech_end data: %w", err)
			}
			in.Transcript = data.Transcript
		}
	default:
		return Inbound{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return in, nil
}

// Encode builds an outbound frame. data may be nil for bare signals.
func Encode(msgType string, data any) ([]byte, error) {
	msg := Message{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", msgType, err)
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// Connected payload.
type ConnectedData struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Mode           string `json:"mode"`
}

// TranscriptData carries a committed user utterance back to the client.
type TranscriptData struct {
	Text string `json:"text"`
}

// InterimTranscriptData carries live caption updates. IsFinal marks a
// fragment the transcriber will not revise.
type InterimTranscriptData struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// AssistantTextData carries an assistant text fragment.
type AssistantTextData struct {
	Text    string `json:"text"`
	IsFinal bool   `json:"is_final"`
}

// Tool dispatch phases reported to the client.
const (
	ToolStatusStarted   = "started"
	ToolStatusCompleted = "completed"
)

// ToolCallData announces a tool dispatch phase.
type ToolCallData struct {
	Tool   string `json:"tool"`
	Status string `json:"status"`
}

// EmotionData reports the mood established for this session.
type EmotionData struct {
	Emotion string `json:"emotion"`
}

// ErrorData carries a client-safe error description.
type ErrorData struct {
	Message string `json:"message"`
}
