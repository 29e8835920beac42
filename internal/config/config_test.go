package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ASK_TOP_K", "")
	t.Setenv("ASK_MIN_SCORE_STRICT", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AskTopK != 4 {
		t.Fatalf("expected default ask top k 4, got %d", cfg.AskTopK)
	}
	if cfg.AskMinScoreStrict != 0.35 {
		t.Fatalf("expected default strict min score 0.35, got %v", cfg.AskMinScoreStrict)
	}
	if cfg.MaxDocumentChars != 120000 {
		t.Fatalf("expected default document cap 120000, got %d", cfg.MaxDocumentChars)
	}
	if cfg.LLMProvider != "ollama" {
		t.Fatalf("expected default provider ollama, got %q", cfg.LLMProvider)
	}
}

func TestLoadParsesEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ASK_TOP_K", "7")
	t.Setenv("ASK_MIN_SCORE_GENERAL", "0.25")
	t.Setenv("API_RATE_LIMIT_RPS", "5.5")
	t.Setenv("LLM_PROVIDER", "openaicompat")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AskTopK != 7 {
		t.Fatalf("expected ask top k override 7, got %d", cfg.AskTopK)
	}
	if cfg.AskMinScoreGeneral != 0.25 {
		t.Fatalf("expected general min score 0.25, got %v", cfg.AskMinScoreGeneral)
	}
	if cfg.APIRateLimitRPS != 5.5 {
		t.Fatalf("expected rate limit 5.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.LLMProvider != "openaicompat" {
		t.Fatalf("expected provider override, got %q", cfg.LLMProvider)
	}
}

func TestLoadReadsYAMLFileUnderEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("ask_top_k: 9\nnats_subject: docs.custom\napi_port: \"8888\"\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ASK_TOP_K", "")
	t.Setenv("API_PORT", "7777")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AskTopK != 9 {
		t.Fatalf("expected top k 9 from file, got %d", cfg.AskTopK)
	}
	if cfg.NATSSubject != "docs.custom" {
		t.Fatalf("expected subject from file, got %q", cfg.NATSSubject)
	}
	if cfg.APIPort != "7777" {
		t.Fatalf("expected env to win over file, got %q", cfg.APIPort)
	}
}

func TestLoadRejectsUnreadableConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
