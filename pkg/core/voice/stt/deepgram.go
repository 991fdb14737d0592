package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/journalbuddy/backend/pkg/core"
)

const deepgramWSURL = "wss://api.deepgram.com/v1/listen"

// DeepgramProvider implements Provider against Deepgram's live
// transcription websocket.
type DeepgramProvider struct {
	apiKey  string
	baseURL string
}

// NewDeepgram creates a Deepgram STT provider.
func NewDeepgram(apiKey string) *DeepgramProvider {
	return &DeepgramProvider{apiKey: apiKey, baseURL: deepgramWSURL}
}

// NewDeepgramWithURL creates a provider against a non-default endpoint
// (used by tests).
func NewDeepgramWithURL(apiKey, baseURL string) *DeepgramProvider {
	return &DeepgramProvider{apiKey: apiKey, baseURL: baseURL}
}

// Name returns the provider identifier.
func (p *DeepgramProvider) Name() string { return "deepgram" }

// Connect opens a live transcription session.
func (p *DeepgramProvider) Connect(ctx context.Context, opts StreamOptions) (Stream, error) {
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse websocket URL: %w", err)
	}

	q := u.Query()
	q.Set("model", defaultStr(opts.Model, "nova-2"))
	q.Set("language", defaultStr(opts.Language, "en-US"))
	q.Set("encoding", defaultStr(opts.Encoding, "linear16"))
	q.Set("sample_rate", fmt.Sprintf("%d", defaultInt(opts.SampleRate, 48000)))
	q.Set("channels", fmt.Sprintf("%d", defaultInt(opts.Channels, 1)))
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	q.Set("utterance_end_ms", "1000")
	q.Set("vad_events", "true")
	q.Set("endpointing", "300")
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("deepgram connect (status %d): %s", resp.StatusCode, string(body))
			}
		}
		return nil, fmt.Errorf("deepgram connect: %w", err)
	}

	s := &deepgramStream{
		conn:   conn,
		events: make(chan Event, 100),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

type deepgramStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	events  chan Event

	// quit is closed by Close so a read loop parked on a full events
	// buffer still exits; done closes when the read loop returns.
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool

	errMu sync.Mutex
	err   error
}

// deepgramResult is the subset of Deepgram's Results message we consume.
type deepgramResult struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) readLoop() {
	defer func() {
		close(s.events)
		close(s.done)
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closed.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(fmt.Errorf("%w: %v", core.ErrStreamClosed, err))
			} else if !s.closed.Load() {
				s.setErr(core.ErrStreamClosed)
			}
			return
		}

		var msg deepgramResult
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type != "Results" || len(msg.Channel.Alternatives) == 0 {
			// UtteranceEnd and metadata messages carry no transcript.
			continue
		}
		text := msg.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}

		select {
		case s.events <- Event{Text: text, IsFinal: msg.IsFinal}:
		case <-s.quit:
			return
		}
	}
}

// SendAudio forwards a raw audio frame to Deepgram.
func (s *deepgramStream) SendAudio(data []byte) error {
	if s.closed.Load() {
		return core.ErrStreamClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Events yields transcript updates.
func (s *deepgramStream) Events() <-chan Event {
	return s.events
}

// Err returns the terminal error after Events closes.
func (s *deepgramStream) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close terminates the session.
func (s *deepgramStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.quit)
	s.writeMu.Lock()
	// Deepgram finishes pending transcripts on CloseStream.
	s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *deepgramStream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func defaultStr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
