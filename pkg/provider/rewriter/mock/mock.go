// Package mock provides a test double for the rewriter.Rewriter interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/lingobot/pkg/provider/rewriter"
)

// Rewriter is a mock implementation of rewriter.Rewriter.
type Rewriter struct {
	mu sync.Mutex

	// Result is returned by every Rewrite call unless RewriteFunc is set.
	Result rewriter.Result

	// RewriteFunc, if set, computes the result instead of Result.
	RewriteFunc func(ctx context.Context, text string) rewriter.Result

	// Calls records the text of every Rewrite invocation in order.
	Calls []string
}

// Rewrite records the call and returns the configured result.
func (r *Rewriter) Rewrite(ctx context.Context, text string) rewriter.Result {
	r.mu.Lock()
	r.Calls = append(r.Calls, text)
	fn, res := r.RewriteFunc, r.Result
	r.mu.Unlock()

	if fn != nil {
		return fn(ctx, text)
	}
	return res
}

// CallCount returns the number of Rewrite calls. Thread-safe.
func (r *Rewriter) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

var _ rewriter.Rewriter = (*Rewriter)(nil)
