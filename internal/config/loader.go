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

// ValidProviderNames lists the built-in provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"annotator": {"spacy-http"},
	"speller":   {"symspell"},
	"llm":       {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"sentiment": {"lexicon", "llm"},
	"emotion":   {"lexicon", "llm"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config] with defaults applied.
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

// LoadFromReader decodes a YAML config from r, applies defaults and
// validates the result. Unknown keys are rejected. An empty document is a
// valid config that still fails validation for the missing annotator.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	p := cfg.Providers
	if p.Annotator.IsZero() {
		errs = append(errs, errors.New("providers.annotator.name is required"))
	}
	if p.Speller.IsZero() {
		errs = append(errs, errors.New("providers.speller.name is required"))
	}
	if p.Rewriter.IsZero() && len(p.RewriterFallbacks) > 0 {
		errs = append(errs, errors.New("providers.rewriter_fallbacks requires providers.rewriter"))
	}
	for i, fb := range p.RewriterFallbacks {
		if fb.IsZero() {
			errs = append(errs, fmt.Errorf("providers.rewriter_fallbacks[%d].name is required", i))
		}
		validateProviderName("llm", fb.Name)
	}

	validateProviderName("annotator", p.Annotator.Name)
	validateProviderName("speller", p.Speller.Name)
	validateProviderName("llm", p.Rewriter.Name)
	validateProviderName("sentiment", p.Sentiment.Name)
	validateProviderName("emotion", p.Emotion.Name)

	pl := cfg.Pipeline
	if pl.SimilarityThreshold < 0 || pl.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.similarity_threshold %.2f is out of range [0, 1]", pl.SimilarityThreshold))
	}
	if pl.MaxSubstitutionRate < 0 || pl.MaxSubstitutionRate > 1 {
		errs = append(errs, fmt.Errorf("pipeline.max_substitution_rate %.2f is out of range [0, 1]", pl.MaxSubstitutionRate))
	}
	if pl.RewriteTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.rewrite_timeout %v must not be negative", pl.RewriteTimeout))
	}
	if pl.RunOnWords < 0 {
		errs = append(errs, fmt.Errorf("pipeline.run_on_words %d must not be negative", pl.RunOnWords))
	}

	if p.Rewriter.IsZero() && pl.RewriteTimeout > 0 && pl.RewriteTimeout != DefaultRewriteTimeout {
		slog.Warn("pipeline.rewrite_timeout is set but no rewriter is configured")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok || slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or a third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
