// Command server runs the voice journaling backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/journalbuddy/backend/pkg/agent"
	"github.com/journalbuddy/backend/pkg/core/llm"
	"github.com/journalbuddy/backend/pkg/core/tokens"
	"github.com/journalbuddy/backend/pkg/core/voice/stt"
	"github.com/journalbuddy/backend/pkg/core/voice/tts"
	"github.com/journalbuddy/backend/pkg/gateway/config"
	"github.com/journalbuddy/backend/pkg/gateway/server"
	"github.com/journalbuddy/backend/pkg/search"
	"github.com/journalbuddy/backend/pkg/store"
	"github.com/journalbuddy/backend/pkg/store/history"
)

const historyTTL = 6 * time.Hour

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.RunMigrate {
		if err := store.Migrate(cfg.PostgresDSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations applied")
	}

	st, err := store.NewPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer st.Close()

	var hist history.Store = history.NewMemoryStore()
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		hist = history.NewRedisStore(redis.NewClient(opts), historyTTL)
		logger.Info("history cache", "backend", "redis")
	}

	var searcher search.Searcher
	var indexer search.Indexer
	if cfg.QdrantURL != "" {
		embedder := search.NewOpenAIEmbedder(cfg.OpenAIAPIKey)
		qs, err := search.NewQdrantSearcher(search.QdrantConfig{
			URL:        cfg.QdrantURL,
			Collection: cfg.QdrantCollection,
			APIKey:     cfg.QdrantAPIKey,
		}, embedder)
		if err != nil {
			return fmt.Errorf("connect qdrant: %w", err)
		}
		searcher = qs
		indexer = qs
		logger.Info("memory recall enabled", "collection", cfg.QdrantCollection)
	}

	var client llm.Client
	switch cfg.LLMProvider {
	case "gemini":
		client, err = llm.NewGemini(ctx, cfg.GeminiAPIKey)
		if err != nil {
			return fmt.Errorf("init gemini: %w", err)
		}
	default:
		client = llm.NewGroq(cfg.GroqAPIKey)
	}

	var counter tokens.Counter
	if tk, err := tokens.NewTiktokenCounter(); err != nil {
		logger.Warn("tiktoken unavailable, using heuristic counter", "error", err)
		counter = tokens.HeuristicCounter{}
	} else {
		counter = tk
	}
	budgeter := tokens.NewBudgeter(counter, cfg.LLMModel, cfg.ResponseReserve)

	runtime := agent.NewToolRuntime(st, searcher, indexer, logger)
	loop := agent.NewLoop(client, cfg.LLMModel, runtime, st, searcher, budgeter, logger)
	summarizer := agent.NewSummarizer(client, cfg.LLMModel, st, indexer, logger)

	srv := server.New(cfg, server.Dependencies{
		Store:      st,
		History:    hist,
		STT:        stt.NewDeepgram(cfg.DeepgramAPIKey),
		TTS:        tts.NewCartesia(cfg.CartesiaAPIKey),
		Loop:       loop,
		Summarizer: summarizer,
	}, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
