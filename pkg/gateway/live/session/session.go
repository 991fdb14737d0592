// Package session runs one live voice journaling conversation over a
// websocket. It ties the transcription pipeline, the agent loop, and
// the speech synthesizer together into a single state machine.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/journalbuddy/backend/pkg/agent"
	"github.com/journalbuddy/backend/pkg/core/types"
	"github.com/journalbuddy/backend/pkg/core/voice"
	"github.com/journalbuddy/backend/pkg/core/voice/stt"
	"github.com/journalbuddy/backend/pkg/core/voice/tts"
	"github.com/journalbuddy/backend/pkg/gateway/live/protocol"
	"github.com/journalbuddy/backend/pkg/store"
	"github.com/journalbuddy/backend/pkg/store/history"
)

// State is the lifecycle phase of a conversation session.
type State int32

const (
	StateIdle State = iota
	StateListening
	StateGenerating
	StateInterrupted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateGenerating:
		return "generating"
	case StateInterrupted:
		return "interrupted"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const finalizeTimeout = 30 * time.Second

// Config carries the per-session tunables.
type Config struct {
	MaxAudioFrameBytes int
	Ingest             voice.IngestConfig
	STT                stt.StreamOptions
	Synthesis          tts.SynthesizeOptions
	MinSegmentChars    int
}

// Dependencies wires a session to its collaborators.
type Dependencies struct {
	Transport  Transport
	STT        stt.Provider
	TTS        tts.Provider
	Loop       *agent.Loop
	Summarizer *agent.Summarizer
	Store      store.Store
	History    history.Store
	Logger     *slog.Logger

	User         *store.User
	Conversation *store.Conversation
	Config       Config
}

type inboundFrame struct {
	messageType int
	data        []byte
	err         error
}

type genResult struct {
	outcome *agent.Outcome
	err     error
}

type generation struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// ingester is the slice of voice.Ingest the session drives.
type ingester interface {
	SendAudio(data []byte) error
	NoteInterrupt()
	Close() error
}

// ConversationSession drives one connection from greeting to summary.
type ConversationSession struct {
	transport  Transport
	sttProv    stt.Provider
	ttsProv    tts.Provider
	loop       *agent.Loop
	summarizer *agent.Summarizer
	store      store.Store
	history    history.Store
	logger     *slog.Logger

	user         *store.User
	conversation *store.Conversation
	cfg          Config

	sc     *agent.SessionContext
	synth  *voice.Synthesizer
	ingest ingester

	ctx    context.Context
	cancel context.CancelFunc

	state      atomic.Int32
	utterances chan string
	sttErrs    chan error
	genResults chan genResult
	active     *generation
	sttDown    atomic.Bool
}

// New validates the wiring and builds a session in the idle state.
func New(deps Dependencies) (*ConversationSession, error) {
	if deps.Transport == nil {
		return nil, fmt.Errorf("transport is required")
	}
	if deps.STT == nil {
		return nil, fmt.Errorf("stt provider is required")
	}
	if deps.TTS == nil {
		return nil, fmt.Errorf("tts provider is required")
	}
	if deps.Loop == nil {
		return nil, fmt.Errorf("agent loop is required")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if deps.User == nil || deps.Conversation == nil {
		return nil, fmt.Errorf("user and conversation are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.MaxAudioFrameBytes <= 0 {
		deps.Config.MaxAudioFrameBytes = 8192
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &ConversationSession{
		transport:    deps.Transport,
		sttProv:      deps.STT,
		ttsProv:      deps.TTS,
		loop:         deps.Loop,
		summarizer:   deps.Summarizer,
		store:        deps.Store,
		history:      deps.History,
		logger:       deps.Logger,
		user:         deps.User,
		conversation: deps.Conversation,
		cfg:          deps.Config,
		ctx:          ctx,
		cancel:       cancel,
		utterances:   make(chan string, 4),
		sttErrs:      make(chan error, 1),
		genResults:   make(chan genResult, 1),
	}
	s.sc = agent.NewSessionContext(deps.User.ID, deps.Conversation.ID, deps.User.Name, deps.Conversation.Mode)
	return s, nil
}

// State returns the current lifecycle phase.
func (s *ConversationSession) State() State {
	return State(s.state.Load())
}

// Run owns the connection until the conversation ends or the client
// disconnects. It always finalizes the conversation before returning.
func (s *ConversationSession) Run() error {
	defer s.shutdown()

	if err := s.sc.RefreshGoals(s.ctx, s.store); err != nil {
		s.logger.Warn("loading goals failed", "error", err)
	}

	s.send(protocol.TypeConnected, protocol.ConnectedData{
		UserID:         s.user.ID,
		ConversationID: s.conversation.ID,
		Mode:           string(s.conversation.Mode),
	})

	sttStream, err := s.sttProv.Connect(s.ctx, s.cfg.STT)
	if err != nil {
		s.send(protocol.TypeError, protocol.ErrorData{Message: "transcription is unavailable"})
		return fmt.Errorf("connect stt: %w", err)
	}

	ingest := voice.NewIngest(s.ctx, sttStream, s.cfg.Ingest, voice.IngestCallbacks{
		OnInterim: func(text string) {
			s.send(protocol.TypeInterimTranscript, protocol.InterimTranscriptData{Text: text})
		},
		OnFinal: func(text string) {
			s.send(protocol.TypeInterimTranscript, protocol.InterimTranscriptData{Text: text, IsFinal: true})
		},
		OnUtterance: func(text string) {
			select {
			case s.utterances <- text:
			case <-s.ctx.Done():
			}
		},
		OnError: func(err error) {
			select {
			case s.sttErrs <- err:
			default:
			}
		},
	})
	defer ingest.Close()
	s.ingest = ingest

	s.synth = voice.NewSynthesizer(s.ttsProv, s.cfg.Synthesis, s.cfg.MinSegmentChars, func(chunk []byte) {
		if err := s.transport.SendAudio(chunk); err != nil {
			s.logger.Warn("audio send failed", "error", err)
		}
	}, s.logger)

	s.speakGreeting()
	s.send(protocol.TypeReady, nil)
	s.state.Store(int32(StateListening))

	frames := make(chan inboundFrame, 64)
	go s.readLoop(frames)

	for {
		select {
		case <-s.ctx.Done():
			return nil

		case frame, ok := <-frames:
			if !ok || frame.err != nil {
				return nil
			}
			s.handleFrame(frame)

		case utterance := <-s.utterances:
			s.handleUtterance(utterance)

		case err := <-s.sttErrs:
			// One-shot degrade: captions stop, the session stays up so
			// the user can still hear the assistant finish.
			if !s.sttDown.Swap(true) {
				s.logger.Error("transcription stream failed", "error", err)
				s.send(protocol.TypeError, protocol.ErrorData{Message: "transcription lost, please reconnect"})
			}

		case res := <-s.genResults:
			if done := s.handleGenerationResult(res); done {
				return nil
			}
		}
	}
}

func (s *ConversationSession) readLoop(frames chan<- inboundFrame) {
	defer close(frames)
	for {
		messageType, data, err := s.transport.ReadFrame()
		select {
		case frames <- inboundFrame{messageType: messageType, data: data, err: err}:
		case <-s.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (s *ConversationSession) handleFrame(frame inboundFrame) {
	switch frame.messageType {
	case websocket.BinaryMessage:
		if len(frame.data) > s.cfg.MaxAudioFrameBytes {
			s.logger.Warn("dropping oversized audio frame", "bytes", len(frame.data))
			return
		}
		if s.sttDown.Load() {
			return
		}
		if err := s.ingest.SendAudio(frame.data); err != nil {
			if !s.sttDown.Swap(true) {
				s.logger.Error("forwarding audio failed", "error", err)
				s.send(protocol.TypeError, protocol.ErrorData{Message: "transcription lost, please reconnect"})
			}
		}

	case websocket.TextMessage:
		in, err := protocol.ParseInbound(frame.data)
		if err != nil {
			s.send(protocol.TypeError, protocol.ErrorData{Message: err.Error()})
			return
		}
		switch in.Type {
		case protocol.TypePing:
			s.send(protocol.TypePong, nil)
		case protocol.TypeInterrupt:
			s.interruptActive()
		case protocol.TypeSpeechEnd:
			if text := strings.TrimSpace(in.Transcript); text != "" {
				s.handleUtterance(text)
			}
		}
	}
}

// handleUtterance commits one user utterance and starts a generation.
// An utterance that lands mid-generation is a barge-in.
func (s *ConversationSession) handleUtterance(utterance string) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return
	}
	// A barge-in is an interrupt: the endpointer needs the same
	// post-interrupt cooldown as an explicit interrupt frame.
	s.interruptActive()

	s.send(protocol.TypeUserTranscript, protocol.TranscriptData{Text: utterance})
	s.persistTurn(types.RoleUser, utterance)

	turns, err := s.history.List(s.ctx, s.conversation.ID)
	if err != nil {
		s.logger.Warn("loading history failed", "error", err)
	}
	// The just-persisted utterance is passed separately.
	if n := len(turns); n > 0 && turns[n-1].Role == types.RoleUser && turns[n-1].Text == utterance {
		turns = turns[:n-1]
	}

	s.state.Store(int32(StateGenerating))
	s.send(protocol.TypeAssistantThinking, nil)

	genCtx, cancel := context.WithCancel(s.ctx)
	gen := &generation{cancel: cancel, done: make(chan struct{})}
	s.active = gen

	go func() {
		defer close(gen.done)
		defer cancel()
		s.runGeneration(genCtx, turns, utterance)
	}()
}

func (s *ConversationSession) runGeneration(ctx context.Context, turns []types.Turn, utterance string) {
	s.synth.Reset()
	s.send(protocol.TypeAssistantSpeaking, nil)

	events := agent.Events{
		OnText: func(fragment string) {
			s.send(protocol.TypeAssistantText, protocol.AssistantTextData{Text: fragment})
			if err := s.synth.AddText(ctx, fragment); err != nil {
				s.logger.Warn("synthesis failed", "error", err)
			}
		},
		OnToolCall: func(name, status string) {
			s.send(protocol.TypeToolCall, protocol.ToolCallData{Tool: name, Status: status})
		},
		OnEmotion: func(mood store.Mood) {
			s.send(protocol.TypeEmotion, protocol.EmotionData{Emotion: string(mood)})
		},
	}

	outcome, err := s.loop.Respond(ctx, s.sc, turns, utterance, events)
	if err == nil {
		if ferr := s.synth.Finish(ctx); ferr != nil {
			s.logger.Warn("synthesis flush failed", "error", ferr)
		}
	}

	select {
	case s.genResults <- genResult{outcome: outcome, err: err}:
	case <-ctx.Done():
	}
}

// handleGenerationResult runs on the session goroutine once a
// generation finishes normally. Interrupted generations never get
// here; their partial text is discarded wholesale.
func (s *ConversationSession) handleGenerationResult(res genResult) bool {
	s.active = nil

	if res.err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("generation failed", "error", res.err)
		}
		s.state.Store(int32(StateListening))
		return false
	}

	if text := strings.TrimSpace(res.outcome.Text); text != "" {
		s.persistTurn(types.RoleAssistant, text)
		s.send(protocol.TypeAssistantText, protocol.AssistantTextData{Text: text, IsFinal: true})
	}
	s.send(protocol.TypeAssistantDone, nil)

	if res.outcome.Ended {
		s.send(protocol.TypeConversationEnded, nil)
		return true
	}
	s.state.Store(int32(StateListening))
	return false
}

// interruptActive stops the in-flight generation, if any. Safe to call
// at any time; a second interrupt is a no-op.
func (s *ConversationSession) interruptActive() {
	if !s.state.CompareAndSwap(int32(StateGenerating), int32(StateInterrupted)) {
		return
	}
	s.cancelGeneration()
	s.ingest.NoteInterrupt()
	s.send(protocol.TypeInterrupted, nil)
	s.state.Store(int32(StateListening))
}

// cancelGeneration tears down the active generation and waits for its
// goroutine to exit, then discards any result it managed to queue.
func (s *ConversationSession) cancelGeneration() {
	gen := s.active
	if gen == nil {
		return
	}
	s.synth.Cancel()
	gen.cancel()
	<-gen.done
	select {
	case <-s.genResults:
	default:
	}
	s.active = nil
}

func (s *ConversationSession) speakGreeting() {
	greeting := agent.Greeting
	s.synth.Reset()
	s.send(protocol.TypeAssistantSpeaking, nil)
	if err := s.synth.AddText(s.ctx, greeting); err != nil {
		s.logger.Warn("greeting synthesis failed", "error", err)
	}
	if err := s.synth.Finish(s.ctx); err != nil {
		s.logger.Warn("greeting synthesis failed", "error", err)
	}
	s.send(protocol.TypeAssistantText, protocol.AssistantTextData{Text: greeting, IsFinal: true})
	s.send(protocol.TypeAssistantDone, nil)
	s.persistTurn(types.RoleAssistant, greeting)
}

// persistTurn writes one turn to both the hot transcript cache and the
// durable store. Either write failing logs and moves on; the session
// must not die over persistence.
func (s *ConversationSession) persistTurn(role, text string) {
	turn := types.Turn{Role: role, Text: text, Timestamp: time.Now()}
	if err := s.history.Append(s.ctx, s.conversation.ID, turn); err != nil {
		s.logger.Warn("caching turn failed", "error", err)
	}
	if _, err := s.store.AppendTurn(s.ctx, s.conversation.ID, role, text); err != nil {
		s.logger.Warn("persisting turn failed", "error", err)
	}
}

// shutdown closes the conversation exactly once: stop generating, run
// the close-time summary, mark the conversation ended, and drop the
// transcript cache.
func (s *ConversationSession) shutdown() {
	if s.State() == StateClosed {
		return
	}
	s.cancelGeneration()
	s.state.Store(int32(StateClosed))
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	turns, err := s.history.List(ctx, s.conversation.ID)
	if err != nil || len(turns) == 0 {
		stored, serr := s.store.ListTurns(ctx, s.conversation.ID)
		if serr != nil {
			s.logger.Warn("loading transcript for summary failed", "error", serr)
		}
		turns = turns[:0]
		for _, t := range stored {
			turns = append(turns, types.Turn{Role: t.Role, Text: t.Text, Timestamp: t.CreatedAt})
		}
	}

	if s.summarizer != nil && len(turns) > 1 {
		s.summarizer.Finalize(ctx, s.sc, turns)
	}
	if err := s.store.EndConversation(ctx, s.conversation.ID); err != nil {
		s.logger.Warn("ending conversation failed", "error", err)
	}
	if err := s.history.Clear(ctx, s.conversation.ID); err != nil {
		s.logger.Warn("clearing transcript cache failed", "error", err)
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("closing transport", "error", err)
	}
	s.logger.Info("conversation closed",
		"conversation_id", s.conversation.ID,
		"user_id", s.user.ID,
		"turns", len(turns))
}

func (s *ConversationSession) send(msgType string, data any) {
	if err := s.transport.Send(msgType, data); err != nil {
		s.logger.Warn("send failed", "type", msgType, "error", err)
	}
}
