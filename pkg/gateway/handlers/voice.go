package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/journalbuddy/backend/pkg/agent"
	"github.com/journalbuddy/backend/pkg/core"
	"github.com/journalbuddy/backend/pkg/core/voice"
	"github.com/journalbuddy/backend/pkg/core/voice/stt"
	"github.com/journalbuddy/backend/pkg/core/voice/tts"
	"github.com/journalbuddy/backend/pkg/gateway/config"
	"github.com/journalbuddy/backend/pkg/gateway/live/session"
	"github.com/journalbuddy/backend/pkg/store"
	"github.com/journalbuddy/backend/pkg/store/history"
)

// VoiceHandler upgrades /v1/voice requests into live conversation
// sessions.
type VoiceHandler struct {
	Config     config.Config
	Store      store.Store
	History    history.Store
	STT        stt.Provider
	TTS        tts.Provider
	Loop       *agent.Loop
	Summarizer *agent.Summarizer
	Logger     *slog.Logger
}

func (h VoiceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorJSON(w, core.NewInvalidRequestError("method not allowed"), http.StatusMethodNotAllowed)
		return
	}

	token := bearerToken(r)
	if token == "" {
		writeErrorJSON(w, core.NewAuthenticationError("missing api token"), http.StatusUnauthorized)
		return
	}
	userID, err := h.Store.AuthenticateToken(r.Context(), token)
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) && coreErr.Type == core.ErrAuthentication {
			writeErrorJSON(w, coreErr, http.StatusUnauthorized)
			return
		}
		h.Logger.Error("token lookup failed", "error", err)
		writeErrorJSON(w, &core.Error{Type: core.ErrAPI, Message: "authentication unavailable"}, http.StatusInternalServerError)
		return
	}
	user, err := h.Store.GetUser(r.Context(), userID)
	if err != nil {
		h.Logger.Error("user lookup failed", "user_id", userID, "error", err)
		writeErrorJSON(w, &core.Error{Type: core.ErrAPI, Message: "user lookup failed"}, http.StatusInternalServerError)
		return
	}

	mode := store.ParseJournalMode(r.URL.Query().Get("mode"))
	conversation, err := h.Store.CreateConversation(r.Context(), user.ID, mode)
	if err != nil {
		h.Logger.Error("creating conversation failed", "user_id", user.ID, "error", err)
		writeErrorJSON(w, &core.Error{Type: core.ErrAPI, Message: "could not start conversation"}, http.StatusInternalServerError)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	logger := h.Logger.With("conversation_id", conversation.ID, "user_id", user.ID, "mode", mode)
	sess, err := session.New(session.Dependencies{
		Transport:    session.NewTransport(conn, h.Config.WSWriteTimeout),
		STT:          h.STT,
		TTS:          h.TTS,
		Loop:         h.Loop,
		Summarizer:   h.Summarizer,
		Store:        h.Store,
		History:      h.History,
		Logger:       logger,
		User:         user,
		Conversation: conversation,
		Config: session.Config{
			MaxAudioFrameBytes: h.Config.MaxAudioFrameBytes,
			Ingest: voice.IngestConfig{
				SilenceWindow:     h.Config.SilenceWindow,
				InterruptCooldown: h.Config.InterruptCooldown,
				MinUtteranceGap:   h.Config.MinUtteranceGap,
				PollInterval:      h.Config.EndpointPoll,
			},
			STT: stt.StreamOptions{},
			Synthesis: tts.SynthesizeOptions{
				Voice:      h.Config.TTSVoiceID,
				SampleRate: h.Config.TTSSampleRate,
			},
			MinSegmentChars: h.Config.MinSegmentChars,
		},
	})
	if err != nil {
		logger.Error("session setup failed", "error", err)
		_ = conn.Close()
		return
	}

	logger.Info("conversation started")
	if err := sess.Run(); err != nil {
		logger.Error("conversation failed", "error", err)
	}
}

func bearerToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if strings.HasPrefix(auth, "Bearer ") {
			return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func writeErrorJSON(w http.ResponseWriter, err *core.Error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"error": err})
}
