// Package config provides the configuration schema and loader for the
// kindred voice assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// MemoryBackend selects the memory store implementation.
type MemoryBackend string

const (
	// BackendMemory is the in-process store. Memories do not survive restarts.
	BackendMemory MemoryBackend = "memory"

	// BackendPostgres stores memories in PostgreSQL with pgvector.
	BackendPostgres MemoryBackend = "postgres"
)

// IsValid reports whether b is a recognised memory backend.
func (b MemoryBackend) IsValid() bool {
	return b == BackendMemory || b == BackendPostgres
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	App        AppConfig        `yaml:"app"`
	Call       CallConfig       `yaml:"call"`
	STT        STTConfig        `yaml:"stt"`
	TTS        TTSConfig        `yaml:"tts"`
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Memory     MemoryConfig     `yaml:"memory"`
}

// AppConfig holds logging and observability settings.
type AppConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address the Prometheus metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// Notifications enables desktop notifications for call events.
	Notifications bool `yaml:"notifications"`
}

// CallConfig tunes the capture and segmentation pipeline.
type CallConfig struct {
	// SampleRate is the microphone capture rate in Hz.
	SampleRate int `yaml:"sample_rate"`

	// FrameDurationMs is the capture frame length in milliseconds.
	FrameDurationMs int `yaml:"frame_duration_ms"`

	// VADAggressiveness selects how strictly frames are classified as
	// speech, from 0 (most permissive) to 3 (strictest).
	VADAggressiveness int `yaml:"vad_aggressiveness"`

	// SilenceTimeoutMs is how much trailing non-speech ends an utterance.
	SilenceTimeoutMs int `yaml:"silence_timeout_ms"`

	// HistoryTurns is how many recent conversation turns are replayed to the
	// LLM on each reply.
	HistoryTurns int `yaml:"history_turns"`

	// MemoryTopK is how many retrieved memories augment each reply prompt.
	MemoryTopK int `yaml:"memory_top_k"`
}

// FrameDuration returns FrameDurationMs as a time.Duration.
func (c CallConfig) FrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}

// SilenceTimeout returns SilenceTimeoutMs as a time.Duration.
func (c CallConfig) SilenceTimeout() time.Duration {
	return time.Duration(c.SilenceTimeoutMs) * time.Millisecond
}

// STTConfig selects the speech-to-text model.
type STTConfig struct {
	// ModelPath is the path to the whisper.cpp model file (ggml format).
	ModelPath string `yaml:"model_path"`

	// Language is the BCP-47 language code for transcription.
	Language string `yaml:"language"`
}

// TTSConfig selects the speech synthesis backend.
type TTSConfig struct {
	// ServerURL is the Coqui XTTS server address (e.g., "http://localhost:8020").
	ServerURL string `yaml:"server_url"`

	// SpeakerWav is the path to the reference recording used for voice
	// cloning.
	SpeakerWav string `yaml:"speaker_wav"`

	// Language is the BCP-47 language code for synthesis.
	Language string `yaml:"language"`
}

// LLMConfig selects the reply model. When Provider or Model is empty the
// assistant runs in degraded mode and echoes transcripts instead of
// generating replies.
type LLMConfig struct {
	// Provider is one of "openai", "ollama", "llamacpp".
	Provider string `yaml:"provider"`

	// Model is the model identifier (e.g., "gpt-4o-mini", "llama3.1:8b").
	Model string `yaml:"model"`

	// APIKey authenticates against hosted providers. Local providers ignore it.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Temperature controls output randomness. Zero uses the provider default.
	Temperature float64 `yaml:"temperature"`

	// TopP is the nucleus sampling cutoff. Zero uses the provider default.
	TopP float64 `yaml:"top_p"`

	// MaxTokens caps reply length in tokens. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens"`
}

// EmbeddingsConfig selects the embedding model backing semantic memory.
type EmbeddingsConfig struct {
	// BaseURL is the Ollama server address. Empty means the local default.
	BaseURL string `yaml:"base_url"`

	// Model is the Ollama embedding model name (e.g., "nomic-embed-text").
	Model string `yaml:"model"`
}

// MemoryConfig selects and configures the memory store.
type MemoryConfig struct {
	// Backend selects the store implementation.
	Backend MemoryBackend `yaml:"backend"`

	// PostgresDSN is the connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns a Config with working defaults for a fully local setup:
// in-process memory, whisper transcription, and a local XTTS server. An LLM
// is deliberately not configured; without one the assistant echoes
// transcripts.
func Default() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:      LogInfo,
			Notifications: true,
		},
		Call: CallConfig{
			SampleRate:        16000,
			FrameDurationMs:   30,
			VADAggressiveness: 2,
			SilenceTimeoutMs:  700,
			HistoryTurns:      6,
			MemoryTopK:        3,
		},
		STT: STTConfig{
			ModelPath: "models/ggml-base.en.bin",
			Language:  "en",
		},
		TTS: TTSConfig{
			ServerURL: "http://localhost:8020",
			Language:  "en",
		},
		Embeddings: EmbeddingsConfig{
			Model: "nomic-embed-text",
		},
		Memory: MemoryConfig{
			Backend: BackendMemory,
		},
	}
}
