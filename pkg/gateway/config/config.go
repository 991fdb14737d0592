// Package config loads gateway configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the server needs to run.
type Config struct {
	Addr string

	// Collaborator credentials.
	DeepgramAPIKey string
	CartesiaAPIKey string
	GroqAPIKey     string
	GeminiAPIKey   string
	OpenAIAPIKey   string

	// LLMProvider selects the chat model backend: "groq" or "gemini".
	LLMProvider string
	LLMModel    string

	// Persistence.
	PostgresDSN string
	RunMigrate  bool

	// RedisURL enables the shared history cache when set; empty keeps
	// the in-process cache.
	RedisURL string

	// Similarity search. Empty QdrantURL disables recall.
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Voice tunables.
	TTSVoiceID        string
	TTSSampleRate     int
	MinSegmentChars   int
	SilenceWindow     time.Duration
	InterruptCooldown time.Duration
	MinUtteranceGap   time.Duration
	EndpointPoll      time.Duration

	// Token budgeting.
	ResponseReserve int

	// Websocket limits.
	MaxAudioFrameBytes int
	WSWriteTimeout     time.Duration

	ShutdownGracePeriod time.Duration
}

// LoadFromEnv reads JB_-prefixed variables and validates the result.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("JB_ADDR", ":8080"),
		DeepgramAPIKey:      os.Getenv("JB_DEEPGRAM_API_KEY"),
		CartesiaAPIKey:      os.Getenv("JB_CARTESIA_API_KEY"),
		GroqAPIKey:          os.Getenv("JB_GROQ_API_KEY"),
		GeminiAPIKey:        os.Getenv("JB_GEMINI_API_KEY"),
		OpenAIAPIKey:        os.Getenv("JB_OPENAI_API_KEY"),
		LLMProvider:         envOr("JB_LLM_PROVIDER", "groq"),
		LLMModel:            envOr("JB_LLM_MODEL", "llama-3.3-70b-versatile"),
		PostgresDSN:         os.Getenv("JB_POSTGRES_DSN"),
		RunMigrate:          envBoolOr("JB_RUN_MIGRATIONS", true),
		RedisURL:            os.Getenv("JB_REDIS_URL"),
		QdrantURL:           os.Getenv("JB_QDRANT_URL"),
		QdrantAPIKey:        os.Getenv("JB_QDRANT_API_KEY"),
		QdrantCollection:    envOr("JB_QDRANT_COLLECTION", "journal_entries"),
		TTSVoiceID:          os.Getenv("JB_TTS_VOICE_ID"),
		TTSSampleRate:       envIntOr("JB_TTS_SAMPLE_RATE", 24000),
		MinSegmentChars:     envIntOr("JB_TTS_MIN_SEGMENT_CHARS", 25),
		SilenceWindow:       envDurationOr("JB_SILENCE_WINDOW", 1500*time.Millisecond),
		InterruptCooldown:   envDurationOr("JB_INTERRUPT_COOLDOWN", 1*time.Second),
		MinUtteranceGap:     envDurationOr("JB_MIN_UTTERANCE_GAP", 500*time.Millisecond),
		EndpointPoll:        envDurationOr("JB_ENDPOINT_POLL", 100*time.Millisecond),
		ResponseReserve:     envIntOr("JB_RESPONSE_RESERVE_TOKENS", 4000),
		MaxAudioFrameBytes:  envIntOr("JB_MAX_AUDIO_FRAME_BYTES", 8192),
		WSWriteTimeout:      envDurationOr("JB_WS_WRITE_TIMEOUT", 5*time.Second),
		ShutdownGracePeriod: envDurationOr("JB_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("JB_POSTGRES_DSN must be set")
	}
	if cfg.DeepgramAPIKey == "" {
		return Config{}, fmt.Errorf("JB_DEEPGRAM_API_KEY must be set")
	}
	if cfg.CartesiaAPIKey == "" {
		return Config{}, fmt.Errorf("JB_CARTESIA_API_KEY must be set")
	}
	switch cfg.LLMProvider {
	case "groq":
		if cfg.GroqAPIKey == "" {
			return Config{}, fmt.Errorf("JB_GROQ_API_KEY must be set when JB_LLM_PROVIDER=groq")
		}
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return Config{}, fmt.Errorf("JB_GEMINI_API_KEY must be set when JB_LLM_PROVIDER=gemini")
		}
	default:
		return Config{}, fmt.Errorf("JB_LLM_PROVIDER must be one of groq|gemini")
	}
	if cfg.QdrantURL != "" && cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("JB_OPENAI_API_KEY must be set when JB_QDRANT_URL is configured")
	}
	if cfg.TTSSampleRate <= 0 {
		return Config{}, fmt.Errorf("JB_TTS_SAMPLE_RATE must be > 0")
	}
	if cfg.MinSegmentChars <= 0 {
		return Config{}, fmt.Errorf("JB_TTS_MIN_SEGMENT_CHARS must be > 0")
	}
	if cfg.SilenceWindow <= 0 {
		return Config{}, fmt.Errorf("JB_SILENCE_WINDOW must be > 0")
	}
	if cfg.InterruptCooldown <= 0 {
		return Config{}, fmt.Errorf("JB_INTERRUPT_COOLDOWN must be > 0")
	}
	if cfg.MinUtteranceGap <= 0 {
		return Config{}, fmt.Errorf("JB_MIN_UTTERANCE_GAP must be > 0")
	}
	if cfg.EndpointPoll <= 0 {
		return Config{}, fmt.Errorf("JB_ENDPOINT_POLL must be > 0")
	}
	if cfg.ResponseReserve <= 0 {
		return Config{}, fmt.Errorf("JB_RESPONSE_RESERVE_TOKENS must be > 0")
	}
	if cfg.MaxAudioFrameBytes <= 0 {
		return Config{}, fmt.Errorf("JB_MAX_AUDIO_FRAME_BYTES must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("JB_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("JB_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envBoolOr(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
