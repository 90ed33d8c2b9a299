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

// ValidLLMProviders lists the provider names the server knows how to
// construct. Used by [Validate] to warn about unrecognised names.
var ValidLLMProviders = []string{"anthropic", "openai", "gemini", "ollama", "mistral"}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
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

// LoadFromReader decodes a YAML config from r, expands ${VAR} references in
// credential fields, applies defaults, and validates the result. Useful in
// tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	expandEnv(cfg)
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandEnv resolves ${VAR} references in fields that commonly carry secrets,
// so keys can live in the environment instead of the config file.
func expandEnv(cfg *Config) {
	cfg.LLM.APIKey = os.ExpandEnv(cfg.LLM.APIKey)
	cfg.LLM.BaseURL = os.ExpandEnv(cfg.LLM.BaseURL)
	for i := range cfg.LLM.Fallbacks {
		cfg.LLM.Fallbacks[i].APIKey = os.ExpandEnv(cfg.LLM.Fallbacks[i].APIKey)
		cfg.LLM.Fallbacks[i].BaseURL = os.ExpandEnv(cfg.LLM.Fallbacks[i].BaseURL)
	}
	cfg.Capture.APIKey = os.ExpandEnv(cfg.Capture.APIKey)
	cfg.History.DSN = os.ExpandEnv(cfg.History.DSN)
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.History.Backend == "" {
		cfg.History.Backend = HistoryMemory
	}
	if cfg.Capture.Model == "" {
		cfg.Capture.Model = "nova-3"
	}
	if cfg.Capture.Language == "" {
		cfg.Capture.Language = "en"
	}
	if cfg.Capture.SampleRate == 0 {
		cfg.Capture.SampleRate = 16000
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	validateProviderName("llm", cfg.LLM.Name)
	if cfg.LLM.Name == "" {
		slog.Warn("no LLM provider configured; coaching endpoints will serve deterministic fallbacks only")
	} else if cfg.LLM.Name != "ollama" && cfg.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("llm.api_key is required for provider %q", cfg.LLM.Name))
	}
	for i, fb := range cfg.LLM.Fallbacks {
		prefix := fmt.Sprintf("llm.fallbacks[%d]", i)
		validateProviderName(prefix, fb.Name)
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else if fb.Name != "ollama" && fb.APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required for provider %q", prefix, fb.Name))
		}
	}
	if cfg.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens %d must not be negative", cfg.LLM.MaxTokens))
	}

	if cfg.Capture.APIKey == "" {
		slog.Warn("capture.api_key is empty; live transcription will be unavailable")
	}
	if cfg.Capture.SampleRate < 8000 || cfg.Capture.SampleRate > 48000 {
		errs = append(errs, fmt.Errorf("capture.sample_rate %d is out of range [8000, 48000]", cfg.Capture.SampleRate))
	}

	if !cfg.History.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("history.backend %q is invalid; valid values: postgres, sqlite, memory", cfg.History.Backend))
	}
	if cfg.History.Backend == HistoryPostgres && cfg.History.DSN == "" {
		errs = append(errs, errors.New("history.dsn is required when history.backend is postgres"))
	}
	if cfg.History.Backend == HistorySQLite && cfg.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history.backend is sqlite"))
	}

	if cfg.Coach.DebounceSeconds < 0 {
		errs = append(errs, fmt.Errorf("coach.debounce_seconds %d must not be negative", cfg.Coach.DebounceSeconds))
	}
	if cfg.Coach.MinGrowth < 0 {
		errs = append(errs, fmt.Errorf("coach.min_growth %d must not be negative", cfg.Coach.MinGrowth))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// [ValidLLMProviders].
func validateProviderName(field, name string) {
	if name == "" || slices.Contains(ValidLLMProviders, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo",
		"field", field,
		"name", name,
		"known", ValidLLMProviders,
	)
}
