// Package llm defines the Provider interface for Large Language Model backends.
//
// An LLM provider wraps a remote or local model API (OpenAI, Anthropic, a local
// Ollama instance, ...) and exposes the small surface Lingobot needs: one-shot
// completions for grammar rewrites and text classification, a token estimate
// for input budgeting, and static model metadata.
//
// Implementors must be safe for concurrent use.
package llm

import "context"

// Message is a single chat message sent to the model.
type Message struct {
	// Role is one of "system", "user" or "assistant".
	Role string

	// Content is the text content of the message.
	Content string
}

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a reply.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// SystemPrompt is an optional instruction injected before Messages.
	// Providers without a dedicated system field prepend it as a "system"
	// message.
	SystemPrompt string

	// Messages is the ordered conversation. The last message is usually the
	// user text to operate on.
	Messages []Message

	// Temperature controls output randomness. Zero leaves the provider default.
	Temperature float64

	// MaxTokens caps the completion length. Zero leaves the provider default.
	MaxTokens int
}

// CompletionResponse is the full reply of a [Provider.Complete] call.
type CompletionResponse struct {
	Content string
	Usage   Usage
}

// ModelCapabilities describes static limits of the configured model.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum number of tokens one completion may
	// generate.
	MaxOutputTokens int
}

// Provider is the abstraction over any LLM backend.
//
// Each method must propagate context cancellation promptly.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// CountTokens estimates how many tokens messages would consume. The
	// result need not be exact but should not undercount.
	CountTokens(messages []Message) (int, error)

	// Capabilities returns static metadata for the underlying model.
	Capabilities() ModelCapabilities
}

// EstimateTokens is the shared character-based token heuristic used by the
// built-in providers: roughly four characters per token plus a fixed
// per-message overhead for role and formatting.
func EstimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += (len(m.Content) + 3) / 4
		total += 4
	}
	return total
}
