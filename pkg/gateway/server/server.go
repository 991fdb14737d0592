// Package server assembles the HTTP surface of the journaling backend.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/journalbuddy/backend/pkg/agent"
	"github.com/journalbuddy/backend/pkg/core/voice/stt"
	"github.com/journalbuddy/backend/pkg/core/voice/tts"
	"github.com/journalbuddy/backend/pkg/gateway/config"
	"github.com/journalbuddy/backend/pkg/gateway/handlers"
	"github.com/journalbuddy/backend/pkg/gateway/mw"
	"github.com/journalbuddy/backend/pkg/store"
	"github.com/journalbuddy/backend/pkg/store/history"
)

// Dependencies are the shared collaborators behind every request.
type Dependencies struct {
	Store      store.Store
	History    history.Store
	STT        stt.Provider
	TTS        tts.Provider
	Loop       *agent.Loop
	Summarizer *agent.Summarizer
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux
	http   *http.Server
}

func New(cfg config.Config, deps Dependencies, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),
	}

	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/v1/voice", handlers.VoiceHandler{
		Config:     cfg,
		Store:      deps.Store,
		History:    deps.History,
		STT:        deps.STT,
		TTS:        deps.TTS,
		Loop:       deps.Loop,
		Summarizer: deps.Summarizer,
		Logger:     logger,
	})

	s.http = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Handler(),
	}
	return s
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.AccessLog(s.logger, h)
	h = mw.Recover(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("listening", "addr", s.cfg.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests. Live voice sessions get the
// configured grace period to finish their close-time summaries.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
