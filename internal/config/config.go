// Package config provides the configuration schema and YAML loader for the
// pitchline server.
package config

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

// HistoryBackend selects the call history storage implementation.
type HistoryBackend string

const (
	// HistoryPostgres stores call records in PostgreSQL.
	HistoryPostgres HistoryBackend = "postgres"

	// HistorySQLite stores call records in a local SQLite file.
	HistorySQLite HistoryBackend = "sqlite"

	// HistoryMemory keeps call records in process memory only.
	HistoryMemory HistoryBackend = "memory"
)

// IsValid reports whether b is a recognised history backend.
func (b HistoryBackend) IsValid() bool {
	switch b {
	case HistoryPostgres, HistorySQLite, HistoryMemory:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	Capture CaptureConfig `yaml:"capture"`
	History HistoryConfig `yaml:"history"`
	Coach   CoachConfig   `yaml:"coach"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProviderEntry is the common configuration block shared by all model
// providers. API keys and base URLs support ${VAR} environment expansion.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "anthropic", "openai",
	// "gemini", "ollama", "mistral").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// LLMConfig declares the primary model provider and its ordered fallbacks.
type LLMConfig struct {
	ProviderEntry `yaml:",inline"`

	// MaxTokens caps generated tokens per completion. Zero uses the
	// provider default.
	MaxTokens int `yaml:"max_tokens"`

	// Fallbacks lists additional providers tried in order when the primary
	// fails or its circuit breaker is open.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`
}

// CaptureConfig holds speech transcription settings. When APIKey is empty the
// capture endpoint reports transcription as unsupported.
type CaptureConfig struct {
	// APIKey authenticates against the Deepgram streaming API. Supports
	// ${VAR} environment expansion.
	APIKey string `yaml:"api_key"`

	// Model is the Deepgram model name (e.g., "nova-3").
	Model string `yaml:"model"`

	// Language is the BCP-47 transcription language tag.
	Language string `yaml:"language"`

	// SampleRate is the PCM sample rate of the audio stream in Hz.
	SampleRate int `yaml:"sample_rate"`
}

// HistoryConfig selects and configures the call record store.
type HistoryConfig struct {
	// Backend picks the storage implementation. Defaults to "memory".
	Backend HistoryBackend `yaml:"backend"`

	// DSN is the PostgreSQL connection string, required for the postgres
	// backend. Supports ${VAR} environment expansion.
	DSN string `yaml:"dsn"`

	// Path is the SQLite database file, required for the sqlite backend.
	Path string `yaml:"path"`
}

// CoachConfig tunes the live coaching triggers.
type CoachConfig struct {
	// DebounceSeconds is the minimum interval between automatic coaching
	// calls on the same channel.
	DebounceSeconds int `yaml:"debounce_seconds"`

	// MinGrowth is how many new transcript characters must accumulate before
	// another automatic call fires.
	MinGrowth int `yaml:"min_growth"`
}
