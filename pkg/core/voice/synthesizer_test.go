package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/journalbuddy/backend/pkg/core/voice/tts"
)

// fakeTTS records synthesized segments and returns canned audio.
type fakeTTS struct {
	mu       sync.Mutex
	segments []string
	errFor   map[string]error
}

func (f *fakeTTS) Name() string { return "fake" }

func (f *fakeTTS) SynthesizeStream(ctx context.Context, text string, opts tts.SynthesizeOptions) (*tts.AudioStream, error) {
	f.mu.Lock()
	f.segments = append(f.segments, text)
	err := f.errFor[text]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	stream := tts.NewAudioStream()
	go func() {
		stream.Send([]byte("audio:" + text))
		stream.FinishSending()
	}()
	return stream, nil
}

func (f *fakeTTS) synthesized() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.segments...)
}

func TestSynthesizerSpeaksSegments(t *testing.T) {
	provider := &fakeTTS{}
	var chunks [][]byte
	s := NewSynthesizer(provider, tts.SynthesizeOptions{}, 0, func(c []byte) {
		chunks = append(chunks, c)
	}, slog.Default())

	ctx := context.Background()
	s.Reset()
	if err := s.AddText(ctx, "The morning went well. Your run"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddText(ctx, " was a good start!"); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{"The morning went well.", "Your run was a good start!"}
	got := provider.synthesized()
	if len(got) != len(want) {
		t.Fatalf("synthesized %d segments %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if len(chunks) != 2 {
		t.Errorf("emitted %d chunks, want 2", len(chunks))
	}
}

func TestSynthesizerCancelStopsPendingSegments(t *testing.T) {
	provider := &fakeTTS{}
	var s *Synthesizer
	s = NewSynthesizer(provider, tts.SynthesizeOptions{}, 0, func(c []byte) {
		// Simulate a barge-in arriving while the first segment plays.
		s.Cancel()
	}, slog.Default())

	ctx := context.Background()
	s.Reset()
	if err := s.AddText(ctx, "First sentence arrives and plays. "); err != nil {
		t.Fatal(err)
	}
	if err := s.AddText(ctx, "Second sentence arrives after the barge-in. "); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	if got := provider.synthesized(); len(got) != 1 {
		t.Errorf("synthesized %q after cancel, want only the first segment", got)
	}
}

func TestSynthesizerDropsFailedSegment(t *testing.T) {
	provider := &fakeTTS{errFor: map[string]error{
		"This one breaks the provider.": fmt.Errorf("upstream 500"),
	}}
	s := NewSynthesizer(provider, tts.SynthesizeOptions{}, 0, func([]byte) {}, slog.Default())

	ctx := context.Background()
	s.Reset()
	if err := s.AddText(ctx, "This one breaks the provider. "); err != nil {
		t.Fatalf("AddText returned %v, want segment error swallowed", err)
	}
	if err := s.AddText(ctx, "This one is fine though."); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	got := provider.synthesized()
	if len(got) != 2 {
		t.Fatalf("synthesized %q, want both segments attempted", got)
	}
	if s.TextOnly() {
		t.Error("TextOnly() = true after a transient segment error")
	}
}

func TestSynthesizerTextOnlyAfterBillingRejection(t *testing.T) {
	provider := &fakeTTS{errFor: map[string]error{
		"Payment trouble sentence here.": fmt.Errorf("%w: status 402", tts.ErrUnavailable),
	}}
	s := NewSynthesizer(provider, tts.SynthesizeOptions{}, 0, func([]byte) {}, slog.Default())

	ctx := context.Background()
	s.Reset()
	if err := s.AddText(ctx, "Payment trouble sentence here. "); err != nil {
		t.Fatal(err)
	}
	if err := s.AddText(ctx, "Another sentence after that."); err != nil {
		t.Fatal(err)
	}
	if err := s.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	if !s.TextOnly() {
		t.Fatal("TextOnly() = false after billing rejection")
	}
	if got := provider.synthesized(); len(got) != 1 {
		t.Errorf("synthesized %q, want no further attempts after rejection", got)
	}

	// The flag survives a new response.
	s.Reset()
	if err := s.AddText(ctx, "A brand new response begins."); err != nil {
		t.Fatal(err)
	}
	if !s.TextOnly() {
		t.Error("TextOnly() reset by Reset()")
	}
	if got := provider.synthesized(); len(got) != 1 {
		t.Errorf("synthesized %q, want text-only to skip synthesis", got)
	}
}

func TestShouldSkipSegment(t *testing.T) {
	tests := []struct {
		segment string
		skip    bool
	}{
		{"Plain spoken text.", false},
		{`{"tool": "log_entry"}`, true},
		{"[1, 2, 3]", true},
		{"__END_CONVERSATION__", true},
		{"   ", true},
		{"Underscores_inside_words are fine.", false},
	}
	for _, tt := range tests {
		if got := shouldSkipSegment(tt.segment); got != tt.skip {
			t.Errorf("shouldSkipSegment(%q) = %v, want %v", tt.segment, got, tt.skip)
		}
	}
}
