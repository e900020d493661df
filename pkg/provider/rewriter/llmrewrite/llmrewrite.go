// Package llmrewrite implements [rewriter.Rewriter] on top of an
// [llm.Provider].
//
// The model is asked to return a JSON object with a single
// "corrected_text" field. Markdown code fences around the JSON are
// tolerated. Any other reply shape, an empty rewrite, a backend error or a
// timeout is reported through [rewriter.Result.Err]; the Rewriter never
// panics and never returns a partial candidate.
package llmrewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrWong99/lingobot/pkg/provider/llm"
	"github.com/MrWong99/lingobot/pkg/provider/rewriter"
)

var _ rewriter.Rewriter = (*Rewriter)(nil)

const (
	defaultTemperature = 0.1
	defaultTimeout     = 20 * time.Second
	minOutputTokens    = 64
)

const systemPrompt = `You are a careful English grammar corrector.

Rewrite the user's sentence so that it is grammatically correct.

Rules:
- Fix grammar, agreement, tense and spelling mistakes only.
- Keep the meaning, the vocabulary and the word order as close to the input as possible.
- Do NOT add new information, explanations or extra sentences.
- Keep proper nouns and product names exactly as written.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{"corrected_text": "<the corrected sentence>"}`

type llmResponse struct {
	CorrectedText string `json:"corrected_text"`
}

// Option is a functional option for configuring a [Rewriter].
type Option func(*Rewriter)

// WithTemperature sets the sampling temperature. Default: 0.1.
func WithTemperature(temp float64) Option {
	return func(r *Rewriter) {
		r.temperature = temp
	}
}

// WithTimeout bounds each rewrite call. Zero or negative disables the
// per-call deadline. Default: 20 s.
func WithTimeout(d time.Duration) Option {
	return func(r *Rewriter) {
		r.timeout = d
	}
}

// WithRateLimit throttles calls to the backend. A call that cannot get a
// token before its deadline fails like any other backend error.
func WithRateLimit(l *rate.Limiter) Option {
	return func(r *Rewriter) {
		r.limiter = l
	}
}

// Rewriter asks an LLM for a grammar rewrite. It is safe for concurrent use.
type Rewriter struct {
	llm         llm.Provider
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
}

// New returns a Rewriter backed by provider.
func New(provider llm.Provider, opts ...Option) *Rewriter {
	r := &Rewriter{
		llm:         provider,
		temperature: defaultTemperature,
		timeout:     defaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Rewrite implements [rewriter.Rewriter].
func (r *Rewriter) Rewrite(ctx context.Context, text string) rewriter.Result {
	if r.llm == nil {
		return rewriter.Failed(rewriter.ErrUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return rewriter.Failed(rewriter.ErrEmptyCandidate)
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return rewriter.Failed(fmt.Errorf("llmrewrite: rate limiter: %w", err))
		}
	}

	messages := []llm.Message{{Role: "user", Content: text}}
	req := llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Temperature:  r.temperature,
		MaxTokens:    r.outputBudget(messages),
	}

	resp, err := r.llm.Complete(ctx, req)
	if err != nil {
		return rewriter.Failed(fmt.Errorf("llmrewrite: complete: %w", err))
	}
	if resp == nil {
		return rewriter.Failed(fmt.Errorf("llmrewrite: nil response: %w", rewriter.ErrEmptyCandidate))
	}

	candidate, err := parseResponse(resp.Content)
	if err != nil {
		return rewriter.Failed(err)
	}
	return rewriter.Result{Candidate: candidate}
}

// outputBudget sizes MaxTokens at roughly twice the input, capped by the
// model's output limit.
func (r *Rewriter) outputBudget(messages []llm.Message) int {
	n, err := r.llm.CountTokens(messages)
	if err != nil || n <= 0 {
		n = llm.EstimateTokens(messages)
	}
	budget := max(2*n, minOutputTokens)
	if limit := r.llm.Capabilities().MaxOutputTokens; limit > 0 {
		budget = min(budget, limit)
	}
	return budget
}

// parseResponse extracts corrected_text from the model output.
func parseResponse(content string) (string, error) {
	cleaned := stripMarkdown(content)

	var resp llmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err != nil {
		return "", fmt.Errorf("llmrewrite: parse response: %w", err)
	}
	candidate := strings.TrimSpace(resp.CorrectedText)
	if candidate == "" {
		return "", rewriter.ErrEmptyCandidate
	}
	return candidate, nil
}

// stripMarkdown removes optional markdown code fences (```json ... ```) that
// some models put around JSON output.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
