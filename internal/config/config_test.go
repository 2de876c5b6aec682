package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/feralbyte/kindred/internal/config"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Call.SampleRate != 16000 {
		t.Errorf("expected default sample rate 16000, got %d", cfg.Call.SampleRate)
	}
	if cfg.Call.SilenceTimeoutMs != 700 {
		t.Errorf("expected default silence timeout 700ms, got %d", cfg.Call.SilenceTimeoutMs)
	}
	if cfg.Call.HistoryTurns != 6 {
		t.Errorf("expected default history turns 6, got %d", cfg.Call.HistoryTurns)
	}
	if cfg.Memory.Backend != config.BackendMemory {
		t.Errorf("expected default memory backend, got %q", cfg.Memory.Backend)
	}
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()

	yaml := `
app:
  log_level: debug
call:
  vad_aggressiveness: 3
  silence_timeout_ms: 500
llm:
  provider: ollama
  model: llama3.1:8b
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.App.LogLevel != config.LogDebug {
		t.Errorf("expected log level debug, got %q", cfg.App.LogLevel)
	}
	if cfg.Call.VADAggressiveness != 3 {
		t.Errorf("expected aggressiveness 3, got %d", cfg.Call.VADAggressiveness)
	}
	if cfg.Call.SilenceTimeout().Milliseconds() != 500 {
		t.Errorf("expected silence timeout 500ms, got %v", cfg.Call.SilenceTimeout())
	}
	// Unset sections keep default values.
	if cfg.STT.ModelPath == "" {
		t.Error("expected default stt.model_path to survive partial config")
	}
	if cfg.LLM.Model != "llama3.1:8b" {
		t.Errorf("expected llm model llama3.1:8b, got %q", cfg.LLM.Model)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader("call:\n  chattiness: 11\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	t.Parallel()

	yaml := `
app:
  log_level: loud
call:
  vad_aggressiveness: 7
  silence_timeout_ms: -1
memory:
  backend: tape
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"log_level", "vad_aggressiveness", "silence_timeout_ms", "memory.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_PostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	yaml := `
memory:
  backend: postgres
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for postgres backend without DSN, got nil")
	}
	if !strings.Contains(err.Error(), "postgres_dsn") {
		t.Errorf("error should mention postgres_dsn, got: %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "tts:\n  server_url: http://localhost:9020\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TTS.ServerURL != "http://localhost:9020" {
		t.Errorf("expected overridden tts server, got %q", cfg.TTS.ServerURL)
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
