package resilience

import (
	"context"

	"github.com/MrWong99/lingobot/pkg/provider/llm"
)

// LLMFallback is an [llm.Provider] that fails over across several model
// backends. The grammar rewriter and the LLM classifiers use it
// transparently.
type LLMFallback struct {
	group *FallbackGroup[llm.Provider]
}

var _ llm.Provider = (*LLMFallback)(nil)

// NewLLMFallback returns an LLMFallback preferring primary. An empty
// cfg.Kind defaults to "llm".
func NewLLMFallback(primary llm.Provider, primaryName string, cfg FallbackConfig) *LLMFallback {
	if cfg.Kind == "" {
		cfg.Kind = "llm"
	}
	return &LLMFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers another backend after those already added.
func (f *LLMFallback) AddFallback(name string, p llm.Provider) {
	f.group.AddFallback(name, p)
}

// Complete sends req to the first backend that answers. A backend that
// returns a nil response without an error counts as failed.
func (f *LLMFallback) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return ExecuteWithResult(ctx, f.group, func(ctx context.Context, p llm.Provider) (*llm.CompletionResponse, error) {
		resp, err := p.Complete(ctx, req)
		if err == nil && resp == nil {
			return nil, errNilResponse
		}
		return resp, err
	})
}

// CountTokens uses the primary backend's estimate. Token counting is local
// and does not take part in failover.
func (f *LLMFallback) CountTokens(messages []llm.Message) (int, error) {
	return f.group.entries[0].value.CountTokens(messages)
}

// Capabilities reports the smallest limits across all backends, since any of
// them may end up serving a request.
func (f *LLMFallback) Capabilities() llm.ModelCapabilities {
	caps := f.group.entries[0].value.Capabilities()
	for _, e := range f.group.entries[1:] {
		c := e.value.Capabilities()
		caps.ContextWindow = minPositive(caps.ContextWindow, c.ContextWindow)
		caps.MaxOutputTokens = minPositive(caps.MaxOutputTokens, c.MaxOutputTokens)
	}
	return caps
}

// Status reports the breaker state of every backend.
func (f *LLMFallback) Status() []BackendStatus {
	return f.group.Status()
}

// Available reports whether any backend currently admits calls.
func (f *LLMFallback) Available() bool {
	return f.group.Available()
}

// minPositive treats zero as "unknown".
func minPositive(a, b int) int {
	switch {
	case a <= 0:
		return b
	case b <= 0:
		return a
	}
	return min(a, b)
}
