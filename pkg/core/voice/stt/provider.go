// Package stt provides the streaming speech-to-text collaborator.
package stt

import "context"

// Event is a single transcript update from the recognizer.
type Event struct {
	Text    string // partial or final transcript fragment
	IsFinal bool   // true when the recognizer has settled on this fragment
}

// Stream is one live recognition session over a connection.
type Stream interface {
	// SendAudio forwards a raw audio frame to the recognizer.
	SendAudio(data []byte) error

	// Events yields transcript updates. The channel is closed when the
	// stream ends; check Err afterwards.
	Events() <-chan Event

	// Err returns the terminal error after Events closes, if any.
	Err() error

	// Close terminates the session.
	Close() error
}

// StreamOptions configures a recognition session.
type StreamOptions struct {
	Model      string // recognizer model (default "nova-2")
	Language   string // BCP-47 language tag (default "en-US")
	Encoding   string // audio encoding (default "linear16")
	SampleRate int    // audio sample rate in Hz (default 48000)
	Channels   int    // audio channels (default 1)
}

// Provider opens recognition sessions.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// Connect opens a streaming recognition session.
	Connect(ctx context.Context, opts StreamOptions) (Stream, error)
}
