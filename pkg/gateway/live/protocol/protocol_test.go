package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantType       string
		wantTranscript string
		wantErr        bool
	}{
		{
			name:     "interrupt",
			raw:      `{"type":"interrupt"}`,
			wantType: TypeInterrupt,
		},
		{
			name:     "ping",
			raw:      `{"type":"ping"}`,
			wantType: TypePing,
		},
		{
			name:           "speech end with transcript",
			raw:            `{"type":"speech_end","data":{"transcript":"I walked today"}}`,
			wantType:       TypeSpeechEnd,
			wantTranscript: "I walked today",
		},
		{
			name:     "speech end without data",
			raw:      `{"type":"speech_end"}`,
			wantType: TypeSpeechEnd,
		},
		{
			name:    "unknown type",
			raw:     `{"type":"dance"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			raw:     `hello`,
			wantErr: true,
		},
		{
			name:    "speech end with bad data",
			raw:     `{"type":"speech_end","data":"nope"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseInbound([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if in.Type != tt.wantType {
				t.Errorf("type = %q, want %q", in.Type, tt.wantType)
			}
			if in.Transcript != tt.wantTranscript {
				t.Errorf("transcript = %q, want %q", in.Transcript, tt.wantTranscript)
			}
		})
	}
}

func TestEncodeWithData(t *testing.T) {
	raw, err := Encode(TypeUserTranscript, TranscriptData{Text: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if msg.Type != TypeUserTranscript {
		t.Errorf("type = %q, want %q", msg.Type, TypeUserTranscript)
	}
	var data TranscriptData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("data is not valid json: %v", err)
	}
	if data.Text != "hello" {
		t.Errorf("text = %q, want %q", data.Text, "hello")
	}
}

func TestEncodePayloadShapes(t *testing.T) {
	tests := []struct {
		name    string
		msgType string
		data    any
		want    string
	}{
		{
			name:    "tool call carries tool and status",
			msgType: TypeToolCall,
			data:    ToolCallData{Tool: "recall_memory", Status: ToolStatusStarted},
			want:    `{"type":"tool_call","data":{"tool":"recall_memory","status":"started"}}`,
		},
		{
			name:    "emotion uses the emotion key",
			msgType: TypeEmotion,
			data:    EmotionData{Emotion: "good"},
			want:    `{"type":"emotion","data":{"emotion":"good"}}`,
		},
		{
			name:    "interim transcript carries is_final",
			msgType: TypeInterimTranscript,
			data:    InterimTranscriptData{Text: "so far", IsFinal: false},
			want:    `{"type":"interim_transcript","data":{"text":"so far","is_final":false}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := Encode(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(raw) != tt.want {
				t.Errorf("encoded = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestEncodeBareSignal(t *testing.T) {
	raw, err := Encode(TypeAssistantDone, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != `{"type":"assistant_done"}` {
		t.Errorf("encoded = %s", raw)
	}
}
