package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// validLLMProviders lists known LLM provider names. Used by [Validate] to
// warn about unrecognised names.
var validLLMProviders = []string{"openai", "ollama", "llamacpp"}

// Load reads the YAML configuration file at path, applies defaults for unset
// sections, and returns a validated [Config]. It is a convenience wrapper
// around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.App.LogLevel != "" && !cfg.App.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("app.log_level %q is invalid; valid values: debug, info, warn, error", cfg.App.LogLevel))
	}

	if cfg.Call.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("call.sample_rate %d must be positive", cfg.Call.SampleRate))
	}
	if cfg.Call.FrameDurationMs <= 0 {
		errs = append(errs, fmt.Errorf("call.frame_duration_ms %d must be positive", cfg.Call.FrameDurationMs))
	}
	if cfg.Call.VADAggressiveness < 0 || cfg.Call.VADAggressiveness > 3 {
		errs = append(errs, fmt.Errorf("call.vad_aggressiveness %d is out of range [0, 3]", cfg.Call.VADAggressiveness))
	}
	if cfg.Call.SilenceTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("call.silence_timeout_ms %d must be positive", cfg.Call.SilenceTimeoutMs))
	}
	if cfg.Call.HistoryTurns < 0 {
		errs = append(errs, fmt.Errorf("call.history_turns %d must not be negative", cfg.Call.HistoryTurns))
	}
	if cfg.Call.MemoryTopK < 0 {
		errs = append(errs, fmt.Errorf("call.memory_top_k %d must not be negative", cfg.Call.MemoryTopK))
	}

	if cfg.STT.ModelPath == "" {
		errs = append(errs, errors.New("stt.model_path is required"))
	}

	if cfg.TTS.ServerURL == "" {
		errs = append(errs, errors.New("tts.server_url is required"))
	}
	if cfg.TTS.SpeakerWav == "" {
		slog.Warn("tts.speaker_wav is empty; synthesis will use the server's default voice")
	}

	// Degraded mode: an unconfigured LLM is valid, the assistant echoes
	// transcripts instead of generating replies.
	if cfg.LLM.Provider == "" || cfg.LLM.Model == "" {
		slog.Warn("llm is not fully configured; replies will echo transcripts",
			"provider", cfg.LLM.Provider,
			"model", cfg.LLM.Model,
		)
	} else if !slices.Contains(validLLMProviders, cfg.LLM.Provider) {
		slog.Warn("unknown LLM provider name — may be a typo",
			"provider", cfg.LLM.Provider,
			"known", validLLMProviders,
		)
	}

	if cfg.Memory.Backend != "" && !cfg.Memory.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("memory.backend %q is invalid; valid values: memory, postgres", cfg.Memory.Backend))
	}
	if cfg.Memory.Backend == BackendPostgres && cfg.Memory.PostgresDSN == "" {
		errs = append(errs, errors.New("memory.postgres_dsn is required when memory.backend is postgres"))
	}
	if cfg.Memory.Backend != "" && cfg.Embeddings.Model == "" {
		errs = append(errs, errors.New("embeddings.model is required when a memory backend is configured"))
	}

	return errors.Join(errs...)
}
