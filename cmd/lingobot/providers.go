package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/time/rate"

	"github.com/MrWong99/lingobot/internal/config"
	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/correction/rules"
	"github.com/MrWong99/lingobot/internal/correction/safety"
	"github.com/MrWong99/lingobot/internal/health"
	"github.com/MrWong99/lingobot/internal/lexicon"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/resilience"
	"github.com/MrWong99/lingobot/pkg/provider/annotator"
	"github.com/MrWong99/lingobot/pkg/provider/annotator/spacyhttp"
	"github.com/MrWong99/lingobot/pkg/provider/classifier"
	lexclassify "github.com/MrWong99/lingobot/pkg/provider/classifier/lexicon"
	"github.com/MrWong99/lingobot/pkg/provider/classifier/llmclassify"
	"github.com/MrWong99/lingobot/pkg/provider/llm"
	"github.com/MrWong99/lingobot/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/lingobot/pkg/provider/llm/openai"
	"github.com/MrWong99/lingobot/pkg/provider/rewriter"
	"github.com/MrWong99/lingobot/pkg/provider/rewriter/llmrewrite"
	"github.com/MrWong99/lingobot/pkg/provider/speller"
	"github.com/MrWong99/lingobot/pkg/provider/speller/symspell"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// defaultSpacyURL is where the annotation sidecar listens when no base_url
// is configured.
const defaultSpacyURL = "http://localhost:8000"

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Annotator ─────────────────────────────────────────────────────────────
	reg.RegisterAnnotator("spacy-http", func(entry config.ProviderEntry) (annotator.Annotator, error) {
		var opts []spacyhttp.Option
		if entry.Model != "" {
			opts = append(opts, spacyhttp.WithModel(entry.Model))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, spacyhttp.WithTimeout(d))
		}
		baseURL := entry.BaseURL
		if baseURL == "" {
			baseURL = defaultSpacyURL
		}
		return spacyhttp.New(baseURL, opts...)
	})

	// ── Speller ───────────────────────────────────────────────────────────────
	reg.RegisterSpeller("symspell", func(entry config.ProviderEntry) (speller.Speller, error) {
		var opts []symspell.Option
		if path := optString(entry.Options, "dictionary"); path != "" {
			opts = append(opts, symspell.WithDictionary(path))
		}
		if n := optInt(entry.Options, "max_distance"); n > 0 {
			opts = append(opts, symspell.WithMaxDistance(n))
		}
		return symspell.New(opts...)
	})

	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai talks to the API through the official SDK so organization and
	// timeout options are available.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oaillm.WithTimeout(d))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// The remaining backends share the any-llm pattern: optional APIKey +
	// optional BaseURL. ollama and the llama servers are local and usually
	// run without a key.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq",
		"ollama", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ── Classifiers ───────────────────────────────────────────────────────────
	reg.RegisterSentiment("lexicon", func(config.ProviderEntry) (classifier.SentimentClassifier, error) {
		return lexclassify.New()
	})
	reg.RegisterEmotion("lexicon", func(config.ProviderEntry) (classifier.EmotionClassifier, error) {
		return lexclassify.New()
	})

	// "llm" classifiers describe their backend inline: options.backend names
	// a registered LLM (default openai) and the remaining fields configure it.
	reg.RegisterSentiment("llm", func(entry config.ProviderEntry) (classifier.SentimentClassifier, error) {
		p, err := classifierBackend(reg, entry)
		if err != nil {
			return nil, err
		}
		return llmclassify.New(p), nil
	})
	reg.RegisterEmotion("llm", func(entry config.ProviderEntry) (classifier.EmotionClassifier, error) {
		p, err := classifierBackend(reg, entry)
		if err != nil {
			return nil, err
		}
		return llmclassify.New(p), nil
	})

	for _, kind := range []string{"annotator", "speller", "llm", "sentiment", "emotion"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

func classifierBackend(reg *config.Registry, entry config.ProviderEntry) (llm.Provider, error) {
	backend := entry
	backend.Name = optString(entry.Options, "backend")
	if backend.Name == "" {
		backend.Name = "openai"
	}
	return reg.CreateLLM(backend)
}

// providers holds the instantiated collaborators. They are created once per
// process; a hot reload only rebuilds the pipeline around them.
type providers struct {
	Annotator annotator.Annotator
	Speller   speller.Speller
	Rewriter  rewriter.Rewriter
	Sentiment classifier.SentimentClassifier
	Emotion   classifier.EmotionClassifier

	// Checkers are the readiness checks for the remote collaborators.
	Checkers []health.Checker
}

// defaultStartupPing bounds the annotator reachability check at startup when
// the annotator entry sets no timeout.
const defaultStartupPing = 5 * time.Second

// buildProviders instantiates all providers named in cfg using the registry.
// The annotator and speller are mandatory; every other provider is skipped
// when unconfigured. An annotator that can be pinged must answer before
// buildProviders returns.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*providers, error) {
	ps := &providers{}
	pc := cfg.Providers

	a, err := reg.CreateAnnotator(pc.Annotator)
	if err != nil {
		return nil, fmt.Errorf("create annotator %q: %w", pc.Annotator.Name, err)
	}
	ps.Annotator = a
	if p, ok := a.(health.Pinger); ok {
		if err := pingAnnotator(ctx, p, optDuration(pc.Annotator.Options, "timeout")); err != nil {
			return nil, fmt.Errorf("create annotator %q: unavailable: %w", pc.Annotator.Name, err)
		}
		ps.Checkers = append(ps.Checkers, health.Ping("annotator", p))
	}
	slog.Info("provider created", "kind", "annotator", "name", pc.Annotator.Name)

	s, err := reg.CreateSpeller(pc.Speller)
	if err != nil {
		return nil, fmt.Errorf("create speller %q: %w", pc.Speller.Name, err)
	}
	ps.Speller = s
	slog.Info("provider created", "kind", "speller", "name", pc.Speller.Name)

	if !pc.Rewriter.IsZero() {
		fb, err := buildRewriteBackend(pc, reg, metrics)
		if err != nil {
			return nil, err
		}
		var opts []llmrewrite.Option
		if d := optDuration(pc.Rewriter.Options, "timeout"); d > 0 {
			opts = append(opts, llmrewrite.WithTimeout(d))
		}
		if t, ok := optFloat(pc.Rewriter.Options, "temperature"); ok {
			opts = append(opts, llmrewrite.WithTemperature(t))
		}
		if rps, ok := optFloat(pc.Rewriter.Options, "requests_per_second"); ok && rps > 0 {
			burst := max(optInt(pc.Rewriter.Options, "burst"), 1)
			opts = append(opts, llmrewrite.WithRateLimit(rate.NewLimiter(rate.Limit(rps), burst)))
		}
		ps.Rewriter = llmrewrite.New(fb, opts...)
		ps.Checkers = append(ps.Checkers, health.Availability("rewriter", fb.Available))
	}

	if name := pc.Sentiment.Name; name != "" {
		c, err := reg.CreateSentiment(pc.Sentiment)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("sentiment provider not registered, skipping", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create sentiment classifier %q: %w", name, err)
		} else {
			ps.Sentiment = c
			slog.Info("provider created", "kind", "sentiment", "name", name)
		}
	}

	if name := pc.Emotion.Name; name != "" {
		c, err := reg.CreateEmotion(pc.Emotion)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("emotion provider not registered, skipping", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create emotion classifier %q: %w", name, err)
		} else {
			ps.Emotion = c
			slog.Info("provider created", "kind", "emotion", "name", name)
		}
	}

	return ps, nil
}

func pingAnnotator(ctx context.Context, p health.Pinger, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultStartupPing
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Ping(ctx)
}

// buildRewriteBackend puts the rewriter's LLM and its fallbacks behind
// per-backend circuit breakers. Breaker tuning is read from the primary
// entry's options.
func buildRewriteBackend(pc config.ProvidersConfig, reg *config.Registry, metrics *observe.Metrics) (*resilience.LLMFallback, error) {
	primary, err := reg.CreateLLM(pc.Rewriter)
	if err != nil {
		return nil, fmt.Errorf("create rewriter llm %q: %w", pc.Rewriter.Name, err)
	}
	fb := resilience.NewLLMFallback(primary, pc.Rewriter.Name, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  optInt(pc.Rewriter.Options, "max_failures"),
			ResetTimeout: optDuration(pc.Rewriter.Options, "reset_timeout"),
		},
		Kind:    "llm",
		Metrics: metrics,
	})
	slog.Info("provider created", "kind", "llm", "name", pc.Rewriter.Name, "model", pc.Rewriter.Model)

	for i, entry := range pc.RewriterFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create rewriter fallback %d %q: %w", i, entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model, "fallback", i+1)
	}
	return fb, nil
}

// newPipeline assembles a correction pipeline from cfg and the long-lived
// providers. It is cheap enough to call again on a configuration reload.
func newPipeline(cfg *config.Config, ps *providers, metrics *observe.Metrics) (*correction.Pipeline, error) {
	lx, err := lexicon.Load(cfg.Lexicon.Path)
	if err != nil {
		return nil, err
	}
	opts := []correction.Option{
		correction.WithLexicon(lx),
		correction.WithMetrics(metrics),
		correction.WithRewriteTimeout(cfg.Pipeline.RewriteTimeout),
		correction.WithFilterOptions(
			safety.WithMinSimilarity(cfg.Pipeline.SimilarityThreshold),
			safety.WithMaxSubstitutionRate(cfg.Pipeline.MaxSubstitutionRate),
		),
		correction.WithRuleOptions(rules.WithRunOnWords(cfg.Pipeline.RunOnWords)),
	}
	if ps.Rewriter != nil {
		opts = append(opts, correction.WithRewriter(ps.Rewriter))
	}
	if ps.Sentiment != nil {
		opts = append(opts, correction.WithSentimentClassifier(ps.Sentiment))
	}
	if ps.Emotion != nil {
		opts = append(opts, correction.WithEmotionClassifier(ps.Emotion))
	}
	return correction.New(ps.Annotator, ps.Speller, opts...)
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer option. YAML integers decode as int; floats
// with no fractional part are accepted too.
func optInt(opts map[string]any, key string) int {
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return 0
}

// optFloat extracts a numeric option and reports whether it was present.
func optFloat(opts map[string]any, key string) (float64, bool) {
	switch v := opts[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// optDuration extracts a duration written as a Go duration string ("20s")
// or as a number of seconds.
func optDuration(opts map[string]any, key string) time.Duration {
	switch v := opts[key].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("ignoring invalid duration option", "key", key, "value", v, "err", err)
			return 0
		}
		return d
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return 0
}
