package voice

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/journalbuddy/backend/pkg/core/voice/stt"
)

// IngestConfig tunes utterance endpointing.
type IngestConfig struct {
	// SilenceWindow is how long the user must stay quiet before their
	// accumulated speech is committed as one utterance.
	SilenceWindow time.Duration

	// InterruptCooldown holds commits after a barge-in so the user's
	// interrupting speech is captured in full rather than split.
	InterruptCooldown time.Duration

	// MinUtteranceGap is the minimum spacing between two commits.
	MinUtteranceGap time.Duration

	// PollInterval is how often silence is checked.
	PollInterval time.Duration
}

// DefaultIngestConfig returns the standard endpointing tunables.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		SilenceWindow:     1500 * time.Millisecond,
		InterruptCooldown: 1 * time.Second,
		MinUtteranceGap:   500 * time.Millisecond,
		PollInterval:      100 * time.Millisecond,
	}
}

func (c IngestConfig) withDefaults() IngestConfig {
	d := DefaultIngestConfig()
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = d.SilenceWindow
	}
	if c.InterruptCooldown <= 0 {
		c.InterruptCooldown = d.InterruptCooldown
	}
	if c.MinUtteranceGap <= 0 {
		c.MinUtteranceGap = d.MinUtteranceGap
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// Endpointer decides when accumulated speech forms a complete
// utterance. It is driven by Feed for transcript events and Poll for
// the passage of time, which keeps it deterministic under test.
type Endpointer struct {
	cfg IngestConfig
	now func() time.Time

	mu            sync.Mutex
	pending       strings.Builder
	lastActivity  time.Time
	interruptedAt time.Time
	committedAt   time.Time
}

// NewEndpointer creates an endpointer. A nil clock uses time.Now.
func NewEndpointer(cfg IngestConfig, clock func() time.Time) *Endpointer {
	if clock == nil {
		clock = time.Now
	}
	return &Endpointer{cfg: cfg.withDefaults(), now: clock}
}

// Feed consumes a transcript event. Interim events only reset the
// silence timer; final events also extend the pending utterance.
func (e *Endpointer) Feed(ev stt.Event) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastActivity = e.now()
	if !ev.IsFinal {
		return
	}
	if e.pending.Len() > 0 {
		e.pending.WriteByte(' ')
	}
	e.pending.WriteString(text)
}

// NoteInterrupt records that the user barged in on the assistant.
// Commits are delayed by InterruptCooldown from this moment.
func (e *Endpointer) NoteInterrupt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.interruptedAt = e.now()
}

// Poll returns a committed utterance when the silence window has
// elapsed, or "" when nothing is ready yet.
func (e *Endpointer) Poll() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending.Len() == 0 {
		return ""
	}

	now := e.now()
	if now.Sub(e.lastActivity) < e.cfg.SilenceWindow {
		return ""
	}
	if !e.interruptedAt.IsZero() && now.Sub(e.interruptedAt) < e.cfg.InterruptCooldown {
		return ""
	}
	if !e.committedAt.IsZero() && now.Sub(e.committedAt) < e.cfg.MinUtteranceGap {
		return ""
	}

	utterance := e.pending.String()
	e.pending.Reset()
	e.committedAt = now
	e.interruptedAt = time.Time{}
	return utterance
}

// Pending reports whether uncommitted speech is buffered.
func (e *Endpointer) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending.Len() > 0
}

// IngestCallbacks receive transcription progress for one connection.
// All callbacks are invoked from the ingest goroutines.
type IngestCallbacks struct {
	// OnInterim fires for partial transcripts, used for live captions.
	OnInterim func(text string)

	// OnFinal fires for finalized transcript fragments.
	OnFinal func(text string)

	// OnUtterance fires once silence endpointing commits a complete
	// user utterance.
	OnUtterance func(text string)

	// OnError fires when the transcription stream fails.
	OnError func(err error)
}

// Ingest pumps caller audio into a transcription stream and turns the
// resulting transcripts into committed utterances.
type Ingest struct {
	stream     stt.Stream
	endpointer *Endpointer
	callbacks  IngestCallbacks
	cfg        IngestConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewIngest starts endpointing over an open transcription stream.
func NewIngest(ctx context.Context, stream stt.Stream, cfg IngestConfig, callbacks IngestCallbacks) *Ingest {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(ctx)
	in := &Ingest{
		stream:     stream,
		endpointer: NewEndpointer(cfg, nil),
		callbacks:  callbacks,
		cfg:        cfg,
		cancel:     cancel,
	}

	in.wg.Add(2)
	go in.readLoop(ctx)
	go in.pollLoop(ctx)
	return in
}

// SendAudio forwards a raw audio frame to the transcriber.
func (in *Ingest) SendAudio(data []byte) error {
	return in.stream.SendAudio(data)
}

// NoteInterrupt delays the next commit after a barge-in.
func (in *Ingest) NoteInterrupt() {
	in.endpointer.NoteInterrupt()
}

// Close stops both loops and closes the transcription stream.
func (in *Ingest) Close() error {
	in.cancel()
	err := in.stream.Close()
	in.wg.Wait()
	return err
}

func (in *Ingest) readLoop(ctx context.Context) {
	defer in.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-in.stream.Events():
			if !ok {
				if err := in.stream.Err(); err != nil && in.callbacks.OnError != nil {
					in.callbacks.OnError(err)
				}
				return
			}
			in.endpointer.Feed(ev)
			if ev.IsFinal {
				if in.callbacks.OnFinal != nil {
					in.callbacks.OnFinal(ev.Text)
				}
			} else if in.callbacks.OnInterim != nil {
				in.callbacks.OnInterim(ev.Text)
			}
		}
	}
}

func (in *Ingest) pollLoop(ctx context.Context) {
	defer in.wg.Done()
	ticker := time.NewTicker(in.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if utterance := in.endpointer.Poll(); utterance != "" && in.callbacks.OnUtterance != nil {
				in.callbacks.OnUtterance(utterance)
			}
		}
	}
}
