package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JB_POSTGRES_DSN", "postgres://localhost/journal")
	t.Setenv("JB_DEEPGRAM_API_KEY", "dg-key")
	t.Setenv("JB_CARTESIA_API_KEY", "ca-key")
	t.Setenv("JB_GROQ_API_KEY", "gq-key")
}

func TestLoadFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.LLMProvider != "groq" {
		t.Errorf("LLMProvider = %q, want groq", cfg.LLMProvider)
	}
	if cfg.SilenceWindow != 1500*time.Millisecond {
		t.Errorf("SilenceWindow = %v, want 1.5s", cfg.SilenceWindow)
	}
	if cfg.MinSegmentChars != 25 {
		t.Errorf("MinSegmentChars = %d, want 25", cfg.MinSegmentChars)
	}
	if !cfg.RunMigrate {
		t.Error("RunMigrate = false, want true by default")
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("JB_ADDR", ":9000")
	t.Setenv("JB_SILENCE_WINDOW", "2s")
	t.Setenv("JB_TTS_MIN_SEGMENT_CHARS", "40")
	t.Setenv("JB_RUN_MIGRATIONS", "false")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" {
		t.Errorf("Addr = %q, want :9000", cfg.Addr)
	}
	if cfg.SilenceWindow != 2*time.Second {
		t.Errorf("SilenceWindow = %v, want 2s", cfg.SilenceWindow)
	}
	if cfg.MinSegmentChars != 40 {
		t.Errorf("MinSegmentChars = %d, want 40", cfg.MinSegmentChars)
	}
	if cfg.RunMigrate {
		t.Error("RunMigrate = true, want false")
	}
}

func TestLoadFromEnvMissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"postgres dsn", "JB_POSTGRES_DSN"},
		{"deepgram key", "JB_DEEPGRAM_API_KEY"},
		{"cartesia key", "JB_CARTESIA_API_KEY"},
		{"groq key", "JB_GROQ_API_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("LoadFromEnv() succeeded without %s", tt.unset)
			}
		})
	}
}

func TestLoadFromEnvProviderValidation(t *testing.T) {
	setRequired(t)
	t.Setenv("JB_LLM_PROVIDER", "gemini")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("LoadFromEnv() succeeded with gemini provider and no gemini key")
	}

	t.Setenv("JB_GEMINI_API_KEY", "gm-key")
	if _, err := LoadFromEnv(); err != nil {
		t.Errorf("LoadFromEnv() = %v, want success with gemini key set", err)
	}

	t.Setenv("JB_LLM_PROVIDER", "anthropic")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("LoadFromEnv() succeeded with unknown provider")
	}
}

func TestLoadFromEnvQdrantNeedsEmbeddings(t *testing.T) {
	setRequired(t)
	t.Setenv("JB_QDRANT_URL", "https://qdrant.example.com:6334")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("LoadFromEnv() succeeded with qdrant configured but no embeddings key")
	}

	t.Setenv("JB_OPENAI_API_KEY", "oa-key")
	if _, err := LoadFromEnv(); err != nil {
		t.Errorf("LoadFromEnv() = %v, want success", err)
	}
}
