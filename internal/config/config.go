// Package config provides the configuration schema, loader, hot-reload
// watcher and provider registry for Lingobot.
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

// Default pipeline tuning, mirrored by the correction packages.
const (
	DefaultSimilarityThreshold = 0.75
	DefaultMaxSubstitutionRate = 0.4
	DefaultRewriteTimeout      = 20 * time.Second
	DefaultListenAddr          = ":8080"
)

// Config is the root configuration structure for Lingobot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Lexicon   LexiconConfig   `yaml:"lexicon"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the HTTP server listens on. Default ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Default info.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists extra hosts allowed to open the websocket chat
	// cross-origin, e.g. "chat.example.com".
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LexiconConfig points at the casing whitelist and stopword list.
type LexiconConfig struct {
	// Path is a YAML lexicon file. Empty selects the embedded default.
	Path string `yaml:"path"`
}

// ProvidersConfig selects the implementation of every collaborator. Each
// entry names a factory registered in the [Registry].
type ProvidersConfig struct {
	// Annotator is required.
	Annotator ProviderEntry `yaml:"annotator"`

	// Speller is required.
	Speller ProviderEntry `yaml:"speller"`

	// Rewriter names an LLM backend. Empty disables the rewrite stage.
	Rewriter ProviderEntry `yaml:"rewriter"`

	// RewriterFallbacks are LLM backends tried in order when Rewriter fails.
	RewriterFallbacks []ProviderEntry `yaml:"rewriter_fallbacks"`

	// Sentiment and Emotion are optional classifiers.
	Sentiment ProviderEntry `yaml:"sentiment"`
	Emotion   ProviderEntry `yaml:"emotion"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "symspell").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o-mini", "en_core_web_sm").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// IsZero reports whether the entry selects no provider.
func (e ProviderEntry) IsZero() bool {
	return e.Name == ""
}

// PipelineConfig tunes the correction pipeline.
type PipelineConfig struct {
	// SimilarityThreshold is the minimum word-sequence similarity a rewrite
	// needs to be accepted. Default 0.75.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxSubstitutionRate caps the share of positionally substituted words
	// in an accepted rewrite. Default 0.4.
	MaxSubstitutionRate float64 `yaml:"max_substitution_rate"`

	// RewriteTimeout bounds a single rewrite call. Default 20s.
	RewriteTimeout time.Duration `yaml:"rewrite_timeout"`

	// RunOnWords is the word count above which unpunctuated input is reported
	// as a run-on sentence. Default 20.
	RunOnWords int `yaml:"run_on_words"`
}

// ApplyDefaults fills zero values with their documented defaults.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = DefaultListenAddr
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Pipeline.SimilarityThreshold == 0 {
		c.Pipeline.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.Pipeline.MaxSubstitutionRate == 0 {
		c.Pipeline.MaxSubstitutionRate = DefaultMaxSubstitutionRate
	}
	if c.Pipeline.RewriteTimeout == 0 {
		c.Pipeline.RewriteTimeout = DefaultRewriteTimeout
	}
	if c.Pipeline.RunOnWords == 0 {
		c.Pipeline.RunOnWords = 20
	}
}
