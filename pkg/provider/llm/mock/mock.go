// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify which CompletionRequests a rewriter or
// classifier sends and to feed controlled responses without a live backend.
//
// Example:
//
//	p := &mock.Provider{
//	    CompleteResponse: &llm.CompletionResponse{Content: `{"corrected_text":"Hi."}`},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/lingobot/pkg/provider/llm"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// Zero values for response fields cause methods to return zero values and nil errors.
type Provider struct {
	mu sync.Mutex

	// CompleteResponse is returned by Complete. May be nil (returns nil, nil).
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned as the error from Complete.
	CompleteErr error

	// CompleteFunc, if set, takes precedence over CompleteResponse and CompleteErr.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	// TokenCount is returned by CountTokens.
	TokenCount int

	// CountTokensErr, if non-nil, is returned as the error from CountTokens.
	CountTokensErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	// CountTokensCalls records the messages of every CountTokens invocation.
	CountTokensCalls [][]llm.Message
}

// Complete records the call and returns the configured response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	fn, resp, err := p.CompleteFunc, p.CompleteResponse, p.CompleteErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return resp, err
}

// CountTokens records the call and returns TokenCount, CountTokensErr.
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CountTokensCalls = append(p.CountTokensCalls, slices.Clone(messages))
	return p.TokenCount, p.CountTokensErr
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a copy of the recorded Complete calls. Thread-safe.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.CompleteCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.CountTokensCalls = nil
}

var _ llm.Provider = (*Provider)(nil)
