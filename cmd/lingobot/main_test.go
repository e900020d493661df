package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/MrWong99/lingobot/internal/config"
	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/correction/diffreport"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/reply"
	"github.com/MrWong99/lingobot/pkg/provider/annotator"
	annmock "github.com/MrWong99/lingobot/pkg/provider/annotator/mock"
	"github.com/MrWong99/lingobot/pkg/provider/classifier"
	"github.com/MrWong99/lingobot/pkg/provider/llm"
	llmmock "github.com/MrWong99/lingobot/pkg/provider/llm/mock"
	"github.com/MrWong99/lingobot/pkg/provider/speller"
	spmock "github.com/MrWong99/lingobot/pkg/provider/speller/mock"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

var simpleDoc = &annotator.Doc{Tokens: []annotator.Token{
	{Text: "I", Lemma: "I", POS: "PRON", Tag: "PRP", Dep: "nsubj", Head: 1},
	{Text: "like", Lemma: "like", POS: "VERB", Tag: "VBP", Dep: "ROOT", Head: 1},
}}

// ── option helpers ───────────────────────────────────────────────────────────

func TestOptHelpers(t *testing.T) {
	t.Parallel()

	opts := map[string]any{
		"dictionary":   "/usr/share/freq.txt",
		"max_distance": 2,
		"max_float":    3.0,
		"fraction":     0.5,
		"timeout":      "1500ms",
		"reset":        30,
		"bad_timeout":  "soon",
		"temperature":  0.2,
	}

	if got := optString(opts, "dictionary"); got != "/usr/share/freq.txt" {
		t.Errorf("optString = %q", got)
	}
	if got := optString(opts, "max_distance"); got != "" {
		t.Errorf("optString(int) = %q, want empty", got)
	}
	if got := optString(nil, "x"); got != "" {
		t.Errorf("optString(nil) = %q", got)
	}

	intTests := []struct {
		key  string
		want int
	}{
		{"max_distance", 2},
		{"max_float", 3},
		{"fraction", 0},
		{"missing", 0},
	}
	for _, tt := range intTests {
		if got := optInt(opts, tt.key); got != tt.want {
			t.Errorf("optInt(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}

	durTests := []struct {
		key  string
		want time.Duration
	}{
		{"timeout", 1500 * time.Millisecond},
		{"reset", 30 * time.Second},
		{"fraction", 500 * time.Millisecond},
		{"bad_timeout", 0},
		{"missing", 0},
	}
	for _, tt := range durTests {
		if got := optDuration(opts, tt.key); got != tt.want {
			t.Errorf("optDuration(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}

	if v, ok := optFloat(opts, "temperature"); !ok || v != 0.2 {
		t.Errorf("optFloat(temperature) = %v, %v", v, ok)
	}
	if v, ok := optFloat(opts, "max_distance"); !ok || v != 2 {
		t.Errorf("optFloat(max_distance) = %v, %v", v, ok)
	}
	if _, ok := optFloat(opts, "missing"); ok {
		t.Error("optFloat(missing) reported present")
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := slogLevel(tt.in); got != tt.want {
			t.Errorf("slogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// ── provider wiring ──────────────────────────────────────────────────────────

// testRegistry registers mock factories and records which LLM entries were
// instantiated.
func testRegistry(t *testing.T) (*config.Registry, *[]string) {
	t.Helper()
	reg := config.NewRegistry()
	var created []string

	reg.RegisterAnnotator("mock", func(config.ProviderEntry) (annotator.Annotator, error) {
		return &annmock.Annotator{Default: simpleDoc}, nil
	})
	reg.RegisterSpeller("mock", func(config.ProviderEntry) (speller.Speller, error) {
		return &spmock.Speller{Suggestions: map[string]string{"teh": "the"}}, nil
	})
	reg.RegisterLLM("mock", func(e config.ProviderEntry) (llm.Provider, error) {
		created = append(created, e.Model)
		return &llmmock.Provider{CompleteErr: errors.New("offline")}, nil
	})
	reg.RegisterSentiment("fixed", func(config.ProviderEntry) (classifier.SentimentClassifier, error) {
		return fixedSentiment{}, nil
	})
	return reg, &created
}

type fixedSentiment struct{}

func (fixedSentiment) Sentiment(context.Context, string) (classifier.Sentiment, error) {
	return classifier.Sentiment{Label: "positive", Score: 0.9}, nil
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	reg, created := testRegistry(t)
	cfg := &config.Config{Providers: config.ProvidersConfig{
		Annotator: config.ProviderEntry{Name: "mock"},
		Speller:   config.ProviderEntry{Name: "mock"},
		Rewriter: config.ProviderEntry{Name: "mock", Model: "primary", Options: map[string]any{
			"max_failures": 1,
			"timeout":      "2s",
		}},
		RewriterFallbacks: []config.ProviderEntry{{Name: "mock", Model: "backup"}},
		Sentiment:         config.ProviderEntry{Name: "fixed"},
		Emotion:           config.ProviderEntry{Name: "not-registered"},
	}}

	ps, err := buildProviders(context.Background(), cfg, reg, observe.DefaultMetrics())
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.Annotator == nil || ps.Speller == nil || ps.Rewriter == nil || ps.Sentiment == nil {
		t.Fatalf("providers = %+v", ps)
	}
	if ps.Emotion != nil {
		t.Error("unregistered emotion provider must be skipped")
	}
	if want := []string{"primary", "backup"}; !slices.Equal(*created, want) {
		t.Errorf("LLMs created = %v, want %v", *created, want)
	}

	var names []string
	for _, c := range ps.Checkers {
		names = append(names, c.Name)
	}
	// The mock annotator has no Ping, so only the rewriter is checked.
	if !slices.Equal(names, []string{"rewriter"}) {
		t.Errorf("checkers = %v", names)
	}
}

func TestBuildProviders_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.ProvidersConfig)
		wantErr string
	}{
		{
			name:    "unknown annotator",
			mutate:  func(p *config.ProvidersConfig) { p.Annotator.Name = "nope" },
			wantErr: `create annotator "nope"`,
		},
		{
			name:    "unknown speller",
			mutate:  func(p *config.ProvidersConfig) { p.Speller.Name = "nope" },
			wantErr: `create speller "nope"`,
		},
		{
			name: "unknown rewriter fallback",
			mutate: func(p *config.ProvidersConfig) {
				p.Rewriter = config.ProviderEntry{Name: "mock"}
				p.RewriterFallbacks = []config.ProviderEntry{{Name: "nope"}}
			},
			wantErr: `create rewriter fallback 0 "nope"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reg, _ := testRegistry(t)
			cfg := &config.Config{Providers: config.ProvidersConfig{
				Annotator: config.ProviderEntry{Name: "mock"},
				Speller:   config.ProviderEntry{Name: "mock"},
			}}
			tt.mutate(&cfg.Providers)

			_, err := buildProviders(context.Background(), cfg, reg, observe.DefaultMetrics())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to contain %q", err, tt.wantErr)
			}
			if !errors.Is(err, config.ErrProviderNotRegistered) {
				t.Errorf("err = %v, want ErrProviderNotRegistered", err)
			}
		})
	}
}

func TestNewPipeline_RewriteFailureFallsThrough(t *testing.T) {
	t.Parallel()

	reg, _ := testRegistry(t)
	cfg := &config.Config{Providers: config.ProvidersConfig{
		Annotator: config.ProviderEntry{Name: "mock"},
		Speller:   config.ProviderEntry{Name: "mock"},
		Rewriter:  config.ProviderEntry{Name: "mock"},
		Sentiment: config.ProviderEntry{Name: "fixed"},
	}}
	cfg.ApplyDefaults()

	ps, err := buildProviders(context.Background(), cfg, reg, observe.DefaultMetrics())
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	p, err := newPipeline(cfg, ps, observe.DefaultMetrics())
	if err != nil {
		t.Fatalf("newPipeline: %v", err)
	}

	res, err := p.Analyze(context.Background(), "i like teh cat")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Final != "I like the cat." {
		t.Errorf("Final = %q", res.Final)
	}
	if res.RewriteOutcome != observe.RewriteFailed {
		t.Errorf("RewriteOutcome = %q, want %q", res.RewriteOutcome, observe.RewriteFailed)
	}
	if res.Sentiment.Label != "positive" {
		t.Errorf("Sentiment = %+v", res.Sentiment)
	}
}

func TestNewPipeline_MissingLexicon(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Lexicon: config.LexiconConfig{Path: filepath.Join(t.TempDir(), "missing.yaml")}}
	cfg.ApplyDefaults()
	ps := &providers{Annotator: &annmock.Annotator{}, Speller: &spmock.Speller{}}
	if _, err := newPipeline(cfg, ps, observe.DefaultMetrics()); err == nil {
		t.Fatal("expected error for missing lexicon file")
	}
}

func writeBootstrapConfig(t *testing.T, annotatorURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  log_level: warn
providers:
  annotator: { name: spacy-http, base_url: "` + annotatorURL + `", options: { timeout: 2s } }
  speller: { name: symspell }
  sentiment: { name: lexicon }
  emotion: { name: lexicon }
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBootstrap(t *testing.T) {
	sidecar := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sidecar.Close)

	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := writeBootstrapConfig(t, sidecar.URL)
	rt, err := bootstrap(context.Background(), &rootFlags{configPath: path, logLevel: "debug"}, nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if rt.level.Level() != slog.LevelDebug || !rt.levelPinned {
		t.Errorf("level = %v pinned = %v, want debug pinned", rt.level.Level(), rt.levelPinned)
	}
	if rt.providers.Rewriter != nil {
		t.Error("rewriter must be nil when not configured")
	}
	if len(rt.providers.Checkers) != 1 || rt.providers.Checkers[0].Name != "annotator" {
		t.Errorf("checkers = %+v", rt.providers.Checkers)
	}
}

func TestBootstrap_AnnotatorUnavailable(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	for name, url := range map[string]string{
		"unreachable": "http://127.0.0.1:1",
		"unhealthy":   unhealthySidecar(t),
	} {
		t.Run(name, func(t *testing.T) {
			path := writeBootstrapConfig(t, url)
			_, err := bootstrap(context.Background(), &rootFlags{configPath: path}, nil)
			if err == nil || !strings.Contains(err.Error(), `create annotator "spacy-http": unavailable`) {
				t.Errorf("bootstrap err = %v, want annotator unavailable", err)
			}
		})
	}
}

func unhealthySidecar(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := loadConfig(&rootFlags{configPath: filepath.Join(t.TempDir(), "absent.yaml")})
	if err == nil || !strings.Contains(err.Error(), "configs/example.yaml") {
		t.Errorf("missing file err = %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("providers:\n  annotator: {name: a}\n  speller: {name: s}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, err = loadConfig(&rootFlags{configPath: path, logLevel: "loud"})
	if err == nil || !strings.Contains(err.Error(), "--log-level") {
		t.Errorf("bad level err = %v", err)
	}
}

// ── hot reload ───────────────────────────────────────────────────────────────

// stubAnalyzer answers every utterance with a fixed final text.
type stubAnalyzer struct {
	final string
	err   map[string]error
}

func (s stubAnalyzer) Analyze(_ context.Context, text string) (*correction.Result, error) {
	if err, ok := s.err[text]; ok {
		return nil, err
	}
	return &correction.Result{
		Original: text,
		Final:    s.final,
		Segments: diffreport.Segments(text, s.final),
	}, nil
}

func TestApplyReload(t *testing.T) {
	t.Parallel()

	base := &config.Config{}
	base.ApplyDefaults()
	base.Server.LogLevel = config.LogInfo

	level := new(slog.LevelVar)
	rt := &instance{
		cfg:       base,
		level:     level,
		providers: &providers{Annotator: &annmock.Annotator{Default: simpleDoc}, Speller: &spmock.Speller{}},
		service:   reply.NewService(stubAnalyzer{final: "stub."}),
		metrics:   observe.DefaultMetrics(),
	}

	next := *base
	next.Server.LogLevel = config.LogDebug
	next.Server.ListenAddr = ":9999"
	next.Pipeline.RunOnWords = 5
	applyReload(rt, base, &next)

	if level.Level() != slog.LevelDebug {
		t.Errorf("level = %v, want debug", level.Level())
	}
	if rt.cfg.Pipeline.RunOnWords != 5 {
		t.Errorf("pipeline not reloaded: %+v", rt.cfg.Pipeline)
	}
	if rt.cfg.Server.ListenAddr == ":9999" {
		t.Error("listen address must not change without a restart")
	}
	res, err := rt.service.Analyze(context.Background(), "i like teh cat")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Final == "stub." {
		t.Error("service still uses the old analyzer")
	}
}

func TestApplyReload_PinnedLevel(t *testing.T) {
	t.Parallel()

	base := &config.Config{}
	base.ApplyDefaults()
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	rt := &instance{cfg: base, level: level, levelPinned: true}

	next := *base
	next.Server.LogLevel = config.LogDebug
	applyReload(rt, base, &next)

	if level.Level() != slog.LevelWarn {
		t.Errorf("level = %v, want warn to stay pinned", level.Level())
	}
}

// ── check command ────────────────────────────────────────────────────────────

func TestCheckInput(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "lines.txt")
	if err := os.WriteFile(path, []byte("first line\n\n  second line  \n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		stdin   string
		file    string
		args    []string
		want    []string
		wantErr bool
	}{
		{name: "args joined", args: []string{"i", "like", "cats"}, want: []string{"i like cats"}},
		{name: "file skips blank lines", file: path, want: []string{"first line", "second line"}},
		{name: "stdin", file: "-", stdin: "a\nb\n", want: []string{"a", "b"}},
		{name: "nothing", wantErr: true},
		{name: "both", file: path, args: []string{"x"}, wantErr: true},
		{name: "missing file", file: filepath.Join(t.TempDir(), "absent"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := checkInput(strings.NewReader(tt.stdin), tt.file, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDiff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		segs []diffreport.Segment
		want string
	}{
		{
			name: "changes",
			segs: []diffreport.Segment{
				{Kind: diffreport.Delete, Token: "i"},
				{Kind: diffreport.Insert, Token: "I"},
				{Kind: diffreport.Equal, Token: "like"},
				{Kind: diffreport.Delete, Token: "teh"},
				{Kind: diffreport.Insert, Token: "the"},
			},
			want: "[-i-] {+I+} like [-teh-] {+the+}",
		},
		{
			name: "no changes",
			segs: []diffreport.Segment{{Kind: diffreport.Equal, Token: "Fine."}},
			want: diffreport.NoChanges,
		},
		{name: "empty", want: diffreport.NoChanges},
	}
	for _, tt := range tests {
		if got := renderDiff(tt.segs); got != tt.want {
			t.Errorf("%s: renderDiff = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestAnalyzeLines_OrderAndErrors(t *testing.T) {
	t.Parallel()

	svc := reply.NewService(stubAnalyzer{
		final: "Done.",
		err:   map[string]error{"bad": errors.New("sidecar down")},
	})
	lines := []string{"one", "bad", "three", "four", "five"}

	results, err := analyzeLines(context.Background(), svc, lines, 2, false, nil)
	if err != nil {
		t.Fatalf("analyzeLines: %v", err)
	}
	if len(results) != len(lines) {
		t.Fatalf("got %d results", len(results))
	}
	for i, r := range results {
		if r.Line != i+1 || r.Input != lines[i] {
			t.Errorf("result %d = line %d %q", i, r.Line, r.Input)
		}
	}
	if results[1].Err == "" || results[1].Result != nil {
		t.Errorf("bad line = %+v", results[1])
	}
	if results[0].Result == nil || results[0].Result.Final != "Done." {
		t.Errorf("first line = %+v", results[0])
	}
}

func TestAnalyzeLines_FailFast(t *testing.T) {
	t.Parallel()

	svc := reply.NewService(stubAnalyzer{err: map[string]error{"bad": errors.New("boom")}})
	_, err := analyzeLines(context.Background(), svc, []string{"bad", "ok"}, 1, true, nil)
	if err == nil || !strings.Contains(err.Error(), "line 1: boom") {
		t.Errorf("err = %v", err)
	}
}

func TestRunCheck_Text(t *testing.T) {
	t.Parallel()

	svc := reply.NewService(stubAnalyzer{final: "I like the cat."})
	var buf bytes.Buffer
	err := runCheck(context.Background(), &buf, svc, []string{"i like teh cat"}, &checkOptions{jobs: 1})
	if err != nil {
		t.Fatalf("runCheck: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[-teh-]",
		"{+the+}",
		"Corrected: I like the cat.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "#1") {
		t.Error("single utterance must not be numbered")
	}
}

func TestRunCheck_JSONReportsFailures(t *testing.T) {
	t.Parallel()

	svc := reply.NewService(stubAnalyzer{
		final: "Ok.",
		err:   map[string]error{"bad": errors.New("boom")},
	})
	var buf bytes.Buffer
	err := runCheck(context.Background(), &buf, svc, []string{"fine", "bad"}, &checkOptions{jobs: 2, jsonOut: true})
	if err == nil || err.Error() != "1 of 2 utterances failed" {
		t.Errorf("err = %v", err)
	}

	var got []checkResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if len(got) != 2 || got[0].Result == nil || got[1].Err != "boom" {
		t.Errorf("results = %+v", got)
	}
}

func TestRunCheck_TextShowsRawError(t *testing.T) {
	t.Parallel()

	svc := reply.NewService(stubAnalyzer{err: map[string]error{"bad": errors.New("spacyhttp: connection refused")}})
	var buf bytes.Buffer
	if err := runCheck(context.Background(), &buf, svc, []string{"bad"}, &checkOptions{jobs: 1}); err == nil {
		t.Fatal("runCheck: want error")
	}
	if got := buf.String(); !strings.Contains(got, "error: spacyhttp: connection refused") {
		t.Errorf("output = %q", got)
	}
}

func TestPrintStartupSummary_Aligned(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Providers.Annotator = config.ProviderEntry{Name: "spacy-http", Model: "en_core_web_sm"}
	cfg.Providers.Speller = config.ProviderEntry{Name: "symspell"}
	cfg.Providers.Rewriter = config.ProviderEntry{Name: "openai", Model: "gpt-4o-mini"}
	cfg.Providers.RewriterFallbacks = []config.ProviderEntry{{Name: "ollama"}}
	cfg.Lexicon.Path = "lexicon/日本語-overrides.yaml"
	cfg.Server.ListenAddr = ":8080"

	var buf bytes.Buffer
	printStartupSummary(&buf, cfg)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 11 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	want := runewidth.StringWidth(lines[0])
	for i, line := range lines {
		if got := runewidth.StringWidth(line); got != want {
			t.Errorf("line %d width = %d, want %d: %q", i, got, want, line)
		}
	}
}

func TestSummaryCell(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"lexicon", "lexicon            "},
		{"openai/gpt-4o-mini-2024-07-18", "openai/gpt-4o-mini…"},
		{"", strings.Repeat(" ", summaryWidth)},
	}
	for _, tt := range tests {
		if got := summaryCell(tt.in); got != tt.want {
			t.Errorf("summaryCell(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
