package config_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/lingobot/internal/config"
	"github.com/MrWong99/lingobot/pkg/provider/annotator"
	annmock "github.com/MrWong99/lingobot/pkg/provider/annotator/mock"
	"github.com/MrWong99/lingobot/pkg/provider/classifier"
	"github.com/MrWong99/lingobot/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingobot/pkg/provider/llm/mock"
	"github.com/MrWong99/lingobot/pkg/provider/speller"
	spmock "github.com/MrWong99/lingobot/pkg/provider/speller/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
  allowed_origins: [chat.example.com]

lexicon:
  path: /etc/lingobot/lexicon.yaml

providers:
  annotator:
    name: spacy-http
    base_url: http://localhost:8000
    model: en_core_web_sm
  speller:
    name: symspell
    options:
      max_distance: 2
  rewriter:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  rewriter_fallbacks:
    - name: ollama
      model: llama3
  sentiment:
    name: lexicon
  emotion:
    name: llm
    model: gpt-4o-mini

pipeline:
  similarity_threshold: 0.8
  max_substitution_rate: 0.3
  rewrite_timeout: 5s
`

const minimalYAML = `
providers:
  annotator: { name: spacy-http }
  speller: { name: symspell }
`

func mustLoad(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	return cfg
}

// ── loading ──────────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, sampleYAML)
	if cfg.Server.ListenAddr != ":9090" || cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Lexicon.Path != "/etc/lingobot/lexicon.yaml" {
		t.Errorf("lexicon.path = %q", cfg.Lexicon.Path)
	}
	p := cfg.Providers
	if p.Annotator.BaseURL != "http://localhost:8000" || p.Annotator.Model != "en_core_web_sm" {
		t.Errorf("annotator = %+v", p.Annotator)
	}
	if p.Speller.Options["max_distance"] != 2 {
		t.Errorf("speller options = %v", p.Speller.Options)
	}
	if len(p.RewriterFallbacks) != 1 || p.RewriterFallbacks[0].Name != "ollama" {
		t.Errorf("rewriter_fallbacks = %+v", p.RewriterFallbacks)
	}
	if cfg.Pipeline.RewriteTimeout != 5*time.Second || cfg.Pipeline.SimilarityThreshold != 0.8 {
		t.Errorf("pipeline = %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.RunOnWords != 20 {
		t.Errorf("run_on_words default = %d, want 20", cfg.Pipeline.RunOnWords)
	}
}

func TestLoadFromReader_AppliesDefaults(t *testing.T) {
	t.Parallel()

	cfg := mustLoad(t, minimalYAML)
	want := config.PipelineConfig{
		SimilarityThreshold: 0.75,
		MaxSubstitutionRate: 0.4,
		RewriteTimeout:      20 * time.Second,
		RunOnWords:          20,
	}
	if cfg.Pipeline != want {
		t.Errorf("pipeline = %+v, want %+v", cfg.Pipeline, want)
	}
	if cfg.Server.ListenAddr != ":8080" || cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("server = %+v", cfg.Server)
	}
}

func TestLoadFromReader_UnknownKeyRejected(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(minimalYAML + "telemetry: {}\n"))
	if err == nil || !strings.Contains(err.Error(), "telemetry") {
		t.Fatalf("err = %v, want an unknown field error naming telemetry", err)
	}
}

func TestLoadFromReader_EmptyFailsValidation(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFromReader(strings.NewReader(""))
	if err == nil {
		t.Fatal("expected an error for an empty config")
	}
	for _, want := range []string{"providers.annotator.name is required", "providers.speller.name is required"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should contain %q", err, want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "invalid log level",
			mutate:  func(c *config.Config) { c.Server.LogLevel = "verbose" },
			wantErr: `server.log_level "verbose" is invalid`,
		},
		{
			name:    "similarity above one",
			mutate:  func(c *config.Config) { c.Pipeline.SimilarityThreshold = 1.5 },
			wantErr: "pipeline.similarity_threshold 1.50 is out of range",
		},
		{
			name:    "negative substitution rate",
			mutate:  func(c *config.Config) { c.Pipeline.MaxSubstitutionRate = -0.1 },
			wantErr: "pipeline.max_substitution_rate",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *config.Config) { c.Pipeline.RewriteTimeout = -time.Second },
			wantErr: "pipeline.rewrite_timeout",
		},
		{
			name: "fallbacks without rewriter",
			mutate: func(c *config.Config) {
				c.Providers.RewriterFallbacks = []config.ProviderEntry{{Name: "ollama"}}
			},
			wantErr: "providers.rewriter_fallbacks requires providers.rewriter",
		},
		{
			name: "unnamed fallback",
			mutate: func(c *config.Config) {
				c.Providers.Rewriter = config.ProviderEntry{Name: "openai"}
				c.Providers.RewriterFallbacks = []config.ProviderEntry{{Model: "llama3"}}
			},
			wantErr: "providers.rewriter_fallbacks[0].name is required",
		},
		{
			name:   "unknown provider name only warns",
			mutate: func(c *config.Config) { c.Providers.Sentiment.Name = "vader" },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := mustLoad(t, minimalYAML)
			tt.mutate(cfg)
			err := config.Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Server: config.ServerConfig{LogLevel: "loud"}}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if n := len(strings.Split(err.Error(), "\n")); n != 3 {
		t.Errorf("got %d joined errors, want 3:\n%v", n, err)
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()

	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("trace").IsValid() {
		t.Error(`"trace" should be invalid`)
	}
}

// ── registry ─────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	entry := config.ProviderEntry{Name: "nope"}
	errs := map[string]error{}
	_, errs["annotator"] = reg.CreateAnnotator(entry)
	_, errs["speller"] = reg.CreateSpeller(entry)
	_, errs["llm"] = reg.CreateLLM(entry)
	_, errs["sentiment"] = reg.CreateSentiment(entry)
	_, errs["emotion"] = reg.CreateEmotion(entry)

	for kind, err := range errs {
		if !errors.Is(err, config.ErrProviderNotRegistered) {
			t.Errorf("%s: err = %v, want ErrProviderNotRegistered", kind, err)
		}
		if !strings.Contains(err.Error(), kind+`/"nope"`) {
			t.Errorf("%s: error %q should name the kind and provider", kind, err)
		}
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	ann := &annmock.Annotator{}
	sp := &spmock.Speller{}
	var gotEntry config.ProviderEntry

	reg.RegisterAnnotator("spacy-http", func(e config.ProviderEntry) (annotator.Annotator, error) {
		gotEntry = e
		return ann, nil
	})
	reg.RegisterSpeller("symspell", func(config.ProviderEntry) (speller.Speller, error) { return sp, nil })
	reg.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterLLM("ollama", func(config.ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })
	reg.RegisterSentiment("fixed", func(config.ProviderEntry) (classifier.SentimentClassifier, error) { return fixed{}, nil })
	reg.RegisterEmotion("fixed", func(config.ProviderEntry) (classifier.EmotionClassifier, error) { return fixed{}, nil })

	got, err := reg.CreateAnnotator(config.ProviderEntry{Name: "spacy-http", Model: "en_core_web_lg"})
	if err != nil || got != ann {
		t.Fatalf("CreateAnnotator = %v, %v", got, err)
	}
	if gotEntry.Model != "en_core_web_lg" {
		t.Errorf("factory received %+v", gotEntry)
	}
	if s, err := reg.CreateSpeller(config.ProviderEntry{Name: "symspell"}); err != nil || s != sp {
		t.Errorf("CreateSpeller = %v, %v", s, err)
	}
	if _, err := reg.CreateSentiment(config.ProviderEntry{Name: "fixed"}); err != nil {
		t.Errorf("CreateSentiment: %v", err)
	}
	if _, err := reg.CreateEmotion(config.ProviderEntry{Name: "fixed"}); err != nil {
		t.Errorf("CreateEmotion: %v", err)
	}
	if names := reg.Names("llm"); !slices.Equal(names, []string{"ollama", "openai"}) {
		t.Errorf("Names(llm) = %v", names)
	}
	if names := reg.Names("tts"); names != nil {
		t.Errorf("Names(tts) = %v, want nil", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	boom := errors.New("missing api key")
	reg.RegisterLLM("openai", func(config.ProviderEntry) (llm.Provider, error) { return nil, boom })

	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "openai"}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want factory error", err)
	}
}

type fixed struct{}

func (fixed) Sentiment(context.Context, string) (classifier.Sentiment, error) {
	return classifier.Sentiment{Label: classifier.LabelNeutral, Score: 1}, nil
}

func (fixed) Emotions(context.Context, string) (map[string]float64, error) {
	return map[string]float64{"neutral": 1}, nil
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("../../configs/example.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	p := cfg.Providers
	if p.Annotator.Name != "spacy-http" || p.Speller.Name != "symspell" {
		t.Errorf("providers = %+v", p)
	}
	if len(p.RewriterFallbacks) != 1 || p.RewriterFallbacks[0].Name != "ollama" {
		t.Errorf("rewriter_fallbacks = %+v", p.RewriterFallbacks)
	}
	if cfg.Pipeline.RewriteTimeout != 20*time.Second {
		t.Errorf("rewrite_timeout = %v", cfg.Pipeline.RewriteTimeout)
	}
}
