// Package tts provides text-to-speech synthesis for conversation replies.
package tts

import (
	"context"
	"errors"
)

// ErrUnavailable reports a billing or quota rejection from the provider.
// Callers should fall back to text-only delivery for the rest of the
// conversation instead of retrying.
var ErrUnavailable = errors.New("tts provider unavailable")

// Provider synthesizes one text segment at a time.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// SynthesizeStream converts a text segment to streaming audio.
	SynthesizeStream(ctx context.Context, text string, opts SynthesizeOptions) (*AudioStream, error)
}

// SynthesizeOptions configures synthesis of one text segment.
type SynthesizeOptions struct {
	Voice      string  // Voice identifier (provider voice ID)
	Speed      float64 // Speed multiplier (0.6-1.5, default 1.0)
	Language   string  // Language code
	SampleRate int     // Sample rate: 8000, 16000, 22050, 24000, 44100, 48000
}

// AudioStream delivers synthesized audio for a single segment.
type AudioStream struct {
	chunks chan []byte
	err    error
	done   chan struct{}
}

// NewAudioStream creates a stream for provider implementations.
func NewAudioStream() *AudioStream {
	return &AudioStream{
		chunks: make(chan []byte, 100),
		done:   make(chan struct{}),
	}
}

// Chunks returns the channel of raw audio chunks.
func (s *AudioStream) Chunks() <-chan []byte {
	return s.chunks
}

// Err blocks until the stream finishes and returns its terminal error.
func (s *AudioStream) Err() error {
	<-s.done
	return s.err
}

// Close stops delivery. Safe to call more than once.
func (s *AudioStream) Close() error {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	return nil
}

// Send delivers a chunk. Returns false once the stream is closed.
func (s *AudioStream) Send(chunk []byte) bool {
	select {
	case s.chunks <- chunk:
		return true
	case <-s.done:
		return false
	}
}

// SetError records the terminal error. Call before FinishSending.
func (s *AudioStream) SetError(err error) {
	s.err = err
}

// FinishSending closes the chunk channel to signal completion.
func (s *AudioStream) FinishSending() {
	close(s.chunks)
	s.Close()
}
