package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/journalbuddy/backend/pkg/core/voice/tts"
)

// EmitFunc receives synthesized audio chunks for one response.
type EmitFunc func(chunk []byte)

// Synthesizer turns streamed assistant text into speech one segment at
// a time. Each segment is a separate provider request, so cancellation
// takes effect at segment boundaries and a single failed segment does
// not abort the rest of the reply.
type Synthesizer struct {
	provider tts.Provider
	opts     tts.SynthesizeOptions
	emit     EmitFunc
	logger   *slog.Logger

	buf       *SegmentBuffer
	cancelled atomic.Bool
	textOnly  atomic.Bool
}

// NewSynthesizer creates a synthesizer that forwards audio to emit.
// minSegmentChars <= 0 uses DefaultMinSegmentChars.
func NewSynthesizer(provider tts.Provider, opts tts.SynthesizeOptions, minSegmentChars int, emit EmitFunc, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	if minSegmentChars <= 0 {
		minSegmentChars = DefaultMinSegmentChars
	}
	return &Synthesizer{
		provider: provider,
		opts:     opts,
		emit:     emit,
		logger:   logger,
		buf:      NewSegmentBuffer(minSegmentChars),
	}
}

// Reset prepares the synthesizer for a new response. The text-only
// flag is sticky across responses once the provider rejects a request
// for billing reasons.
func (s *Synthesizer) Reset() {
	s.buf.Reset()
	s.cancelled.Store(false)
}

// Cancel stops synthesis for the current response. Audio already sent
// to emit is not recalled; pending segments are dropped.
func (s *Synthesizer) Cancel() {
	s.cancelled.Store(true)
	s.buf.Reset()
}

// TextOnly reports whether synthesis has been disabled for this
// synthesizer after a billing or quota rejection.
func (s *Synthesizer) TextOnly() bool {
	return s.textOnly.Load()
}

// AddText buffers a streamed text delta and speaks any segments that
// became ready.
func (s *Synthesizer) AddText(ctx context.Context, text string) error {
	if s.cancelled.Load() {
		return nil
	}
	for _, segment := range s.buf.Add(text) {
		if err := s.speakSegment(ctx, segment); err != nil {
			return err
		}
	}
	return nil
}

// Finish speaks any trailing text that never reached a break mark.
func (s *Synthesizer) Finish(ctx context.Context) error {
	if s.cancelled.Load() {
		return nil
	}
	remaining := s.buf.Flush()
	if remaining == "" {
		return nil
	}
	return s.speakSegment(ctx, remaining)
}

func (s *Synthesizer) speakSegment(ctx context.Context, segment string) error {
	if s.cancelled.Load() || s.textOnly.Load() {
		return nil
	}
	if shouldSkipSegment(segment) {
		return nil
	}

	stream, err := s.provider.SynthesizeStream(ctx, segment, s.opts)
	if err != nil {
		if errors.Is(err, tts.ErrUnavailable) {
			s.textOnly.Store(true)
			s.logger.Warn("tts unavailable, switching to text-only", "error", err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// A bad segment is dropped; the reply continues as text plus
		// whatever audio the remaining segments produce.
		s.logger.Warn("tts segment failed", "provider", s.provider.Name(), "error", err)
		return nil
	}
	defer stream.Close()

	for chunk := range stream.Chunks() {
		if s.cancelled.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		s.emit(chunk)
	}
	if err := stream.Err(); err != nil {
		s.logger.Warn("tts stream error", "provider", s.provider.Name(), "error", err)
	}
	return nil
}

// shouldSkipSegment filters out text that is not meant to be spoken:
// structured payloads the model sometimes echoes and internal
// double-underscore markers.
func shouldSkipSegment(segment string) bool {
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return true
	}
	if strings.HasPrefix(trimmed, "__") && strings.Contains(trimmed[2:], "__") {
		return true
	}
	return false
}
