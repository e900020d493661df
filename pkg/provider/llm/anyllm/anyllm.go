// Package anyllm provides an LLM provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider client covering
// OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, llama.cpp and
// llamafile.
//
// Usage:
//
//	p, err := anyllm.New("anthropic", "claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//	p, err := anyllm.NewOllama("llama3")
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/MrWong99/lingobot/pkg/provider/llm"
)

// Supported lists the backend names accepted by [New].
var Supported = []string{"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Provider implements llm.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

var _ llm.Provider = (*Provider)(nil)

// New creates a Provider for the named backend and model.
//
// opts are any-llm-go options (anyllmlib.WithAPIKey, anyllmlib.WithBaseURL).
// Without an API key option the backend falls back to its usual environment
// variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, ...).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// NewAnthropic creates a Provider backed by Anthropic.
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewOllama creates a Provider backed by a local Ollama server
// (http://localhost:11434 unless overridden).
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: %s", providerName, strings.Join(Supported, ", "))
	}
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	result := &llm.CompletionResponse{
		Content: resp.Choices[0].Message.ContentString(),
	}
	if resp.Usage != nil {
		result.Usage = llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// CountTokens implements llm.Provider using [llm.EstimateTokens].
func (p *Provider) CountTokens(messages []llm.Message) (int, error) {
	return llm.EstimateTokens(messages), nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return modelCapabilities(p.model)
}

func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	messages := make([]anyllmlib.Message, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, anyllmlib.Message{Role: m.Role, Content: m.Content})
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}

// modelCapabilities returns limits for known model families. Unknown models
// receive conservative defaults.
func modelCapabilities(model string) llm.ModelCapabilities {
	caps := llm.ModelCapabilities{
		ContextWindow:   128_000,
		MaxOutputTokens: 4_096,
	}

	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "gpt-4o"):
		caps.MaxOutputTokens = 16_384
	case strings.HasPrefix(lower, "gpt-4-turbo"):
		caps.MaxOutputTokens = 4_096
	case strings.HasPrefix(lower, "gpt-4"):
		caps.ContextWindow = 8_192
	case strings.HasPrefix(lower, "gpt-3.5-turbo"):
		caps.ContextWindow = 16_385
	case strings.Contains(lower, "claude-3-opus"):
		caps.ContextWindow = 200_000
	case strings.HasPrefix(lower, "claude"):
		caps.ContextWindow = 200_000
		caps.MaxOutputTokens = 8_192
	case strings.Contains(lower, "gemini-1.5-pro"):
		caps.ContextWindow = 2_097_152
		caps.MaxOutputTokens = 8_192
	case strings.Contains(lower, "gemini-2.0-flash"), strings.Contains(lower, "gemini-1.5-flash"):
		caps.ContextWindow = 1_048_576
		caps.MaxOutputTokens = 8_192
	case strings.HasPrefix(lower, "gemini"):
		caps.MaxOutputTokens = 8_192
	}
	return caps
}
