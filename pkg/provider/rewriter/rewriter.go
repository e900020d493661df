// Package rewriter defines the interface for machine-generated grammar
// rewrites.
//
// A [Rewriter] never signals failure through a bare string: every call
// returns a [Result] that either carries a candidate or an explicit error.
// Callers treat any failure as "no rewrite available" and carry on with the
// text they already have.
//
// Implementations must be safe for concurrent use.
package rewriter

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is reported when no rewrite backend is configured or
	// reachable.
	ErrUnavailable = errors.New("rewriter: unavailable")

	// ErrEmptyCandidate is reported when the backend answered with an empty
	// rewrite.
	ErrEmptyCandidate = errors.New("rewriter: empty candidate")
)

// Result is the outcome of a rewrite attempt.
type Result struct {
	// Candidate is the proposed rewrite. Empty when Err is set.
	Candidate string

	// Err describes why no candidate is available.
	Err error
}

// OK reports whether the result carries a usable candidate.
func (r Result) OK() bool {
	return r.Err == nil && r.Candidate != ""
}

// Failed returns a Result carrying err.
func Failed(err error) Result {
	return Result{Err: err}
}

// Rewriter proposes a grammatically corrected version of a text span.
type Rewriter interface {
	Rewrite(ctx context.Context, text string) Result
}

// Func adapts an ordinary function to the [Rewriter] interface.
type Func func(ctx context.Context, text string) Result

// Rewrite calls f(ctx, text).
func (f Func) Rewrite(ctx context.Context, text string) Result {
	return f(ctx, text)
}
