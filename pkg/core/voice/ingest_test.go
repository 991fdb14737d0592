package voice

import (
	"testing"
	"time"

	"github.com/journalbuddy/backend/pkg/core/voice/stt"
)

// fakeClock advances only when told to, keeping endpointing tests
// free of real timers.
type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func TestEndpointerCommitsAfterSilence(t *testing.T) {
	clock := newFakeClock()
	e := NewEndpointer(DefaultIngestConfig(), clock.Now)

	e.Feed(stt.Event{Text: "I went for a run", IsFinal: true})
	clock.Advance(300 * time.Millisecond)
	e.Feed(stt.Event{Text: "this morning", IsFinal: true})

	clock.Advance(1400 * time.Millisecond)
	if got := e.Poll(); got != "" {
		t.Fatalf("committed %q before the silence window elapsed", got)
	}

	clock.Advance(200 * time.Millisecond)
	if got, want := e.Poll(), "I went for a run this morning"; got != want {
		t.Fatalf("Poll() = %q, want %q", got, want)
	}
	if got := e.Poll(); got != "" {
		t.Fatalf("second Poll() = %q, want empty after commit", got)
	}
}

func TestEndpointerInterimResetsSilence(t *testing.T) {
	clock := newFakeClock()
	e := NewEndpointer(DefaultIngestConfig(), clock.Now)

	e.Feed(stt.Event{Text: "I had a strange", IsFinal: true})
	clock.Advance(1200 * time.Millisecond)
	// The user is still mid-word; only an interim result has arrived.
	e.Feed(stt.Event{Text: "I had a strange dre", IsFinal: false})
	clock.Advance(1200 * time.Millisecond)
	if got := e.Poll(); got != "" {
		t.Fatalf("committed %q while interim speech was active", got)
	}

	e.Feed(stt.Event{Text: "dream last night", IsFinal: true})
	clock.Advance(1600 * time.Millisecond)
	if got, want := e.Poll(), "I had a strange dream last night"; got != want {
		t.Fatalf("Poll() = %q, want %q", got, want)
	}
}

func TestEndpointerSilenceWindowRange(t *testing.T) {
	for _, window := range []time.Duration{
		500 * time.Millisecond,
		1500 * time.Millisecond,
		3 * time.Second,
	} {
		cfg := DefaultIngestConfig()
		cfg.SilenceWindow = window

		clock := newFakeClock()
		e := NewEndpointer(cfg, clock.Now)
		e.Feed(stt.Event{Text: "hello", IsFinal: true})

		clock.Advance(window - time.Millisecond)
		if got := e.Poll(); got != "" {
			t.Errorf("window %v: committed %q too early", window, got)
		}
		clock.Advance(2 * time.Millisecond)
		if got := e.Poll(); got != "hello" {
			t.Errorf("window %v: Poll() = %q, want %q", window, got, "hello")
		}
	}
}

func TestEndpointerInterruptCooldown(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultIngestConfig()
	cfg.SilenceWindow = 500 * time.Millisecond
	cfg.InterruptCooldown = 2 * time.Second
	e := NewEndpointer(cfg, clock.Now)

	e.NoteInterrupt()
	e.Feed(stt.Event{Text: "wait actually", IsFinal: true})

	// Silence has elapsed but the barge-in cooldown has not.
	clock.Advance(1 * time.Second)
	if got := e.Poll(); got != "" {
		t.Fatalf("committed %q during interrupt cooldown", got)
	}

	clock.Advance(1100 * time.Millisecond)
	if got := e.Poll(); got != "wait actually" {
		t.Fatalf("Poll() = %q, want commit once the cooldown elapsed", got)
	}
}

func TestEndpointerMinUtteranceGap(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultIngestConfig()
	cfg.SilenceWindow = 500 * time.Millisecond
	cfg.MinUtteranceGap = 2 * time.Second
	e := NewEndpointer(cfg, clock.Now)

	e.Feed(stt.Event{Text: "first thought", IsFinal: true})
	clock.Advance(cfg.SilenceWindow)
	if got := e.Poll(); got != "first thought" {
		t.Fatalf("Poll() = %q, want first commit", got)
	}

	// The second utterance goes silent before the gap has elapsed.
	e.Feed(stt.Event{Text: "second thought", IsFinal: true})
	clock.Advance(cfg.SilenceWindow)
	if got := e.Poll(); got != "" {
		t.Fatalf("committed %q before the utterance gap elapsed", got)
	}

	clock.Advance(2 * time.Second)
	if got := e.Poll(); got != "second thought" {
		t.Fatalf("Poll() = %q, want second commit after the gap", got)
	}
}

func TestEndpointerNoCommitWithoutSpeech(t *testing.T) {
	clock := newFakeClock()
	e := NewEndpointer(DefaultIngestConfig(), clock.Now)

	clock.Advance(10 * time.Second)
	if got := e.Poll(); got != "" {
		t.Fatalf("Poll() = %q with no speech, want empty", got)
	}
	e.Feed(stt.Event{Text: "   ", IsFinal: true})
	clock.Advance(10 * time.Second)
	if got := e.Poll(); got != "" {
		t.Fatalf("Poll() = %q for whitespace speech, want empty", got)
	}
}
