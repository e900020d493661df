// Package resilience keeps remote rewrite backends from dragging the
// correction pipeline down.
//
// A [CircuitBreaker] guards one backend with the usual three states
// (closed, open, half-open). A [FallbackGroup] orders several backends of the
// same kind, each behind its own breaker, and hands a call to the first one
// that is allowed through and succeeds. [LLMFallback] applies this to
// [llm.Provider] so the grammar rewriter can fail over from a hosted model to
// a local one.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] while the breaker
// rejects calls.
var ErrCircuitOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call.
	StateClosed State = iota

	// StateOpen rejects calls with [ErrCircuitOpen] until the reset timeout
	// elapses.
	StateOpen

	// StateHalfOpen lets a bounded number of trial calls through. One failed
	// trial re-opens the breaker; enough successful trials close it.
	StateHalfOpen
)

// String returns the lowercase state name used in logs and health output.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds tuning knobs for a [CircuitBreaker]. Zero
// fields take the defaults noted below.
type CircuitBreakerConfig struct {
	// Name labels the breaker in logs. Usually the backend name.
	Name string

	// MaxFailures is the number of consecutive failures that opens a closed
	// breaker. Default: 5.
	MaxFailures int

	// ResetTimeout is how long an open breaker waits before probing.
	// Default: 30s.
	ResetTimeout time.Duration

	// HalfOpenMax is the number of successful trials needed to close the
	// breaker again. Default: 3.
	HalfOpenMax int
}

// CircuitBreaker guards a single backend.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int
	now          func() time.Time

	mu              sync.Mutex
	state           State
	consecutiveFail int
	openedAt        time.Time
	trials          int
	trialSuccesses  int
}

// NewCircuitBreaker returns a closed breaker configured by cfg.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 3
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		halfOpenMax:  cfg.HalfOpenMax,
		now:          time.Now,
		state:        StateClosed,
	}
}

// Execute runs fn when the breaker admits the call and records its outcome.
//
// A call abandoned by its caller (ctx cancelled and fn returning
// [context.Canceled]) is not held against the backend. A deadline that
// expires inside fn is: a backend that cannot answer within the rewrite
// budget is as useless as one that errors.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, err := cb.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch {
	case err == nil:
		cb.onSuccess(trial)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		if trial {
			cb.trials--
		}
	default:
		cb.onFailure(trial)
	}
	return err
}

// admit decides whether a call may proceed and whether it counts as a
// half-open trial.
func (cb *CircuitBreaker) admit() (trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
	}
	if cb.state == StateHalfOpen {
		if cb.trials >= cb.halfOpenMax {
			return false, ErrCircuitOpen
		}
		cb.trials++
		return true, nil
	}
	return false, nil
}

// onFailure must be called with cb.mu held.
func (cb *CircuitBreaker) onFailure(trial bool) {
	if trial {
		cb.transition(StateOpen)
		return
	}
	cb.consecutiveFail++
	if cb.state == StateClosed && cb.consecutiveFail >= cb.maxFailures {
		cb.transition(StateOpen)
	}
}

// onSuccess must be called with cb.mu held.
func (cb *CircuitBreaker) onSuccess(trial bool) {
	if !trial {
		cb.consecutiveFail = 0
		return
	}
	cb.trialSuccesses++
	if cb.trialSuccesses >= cb.halfOpenMax {
		cb.transition(StateClosed)
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.trials = 0
	cb.trialSuccesses = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.now()
		slog.Warn("resilience: breaker opened", "breaker", cb.name, "from", from.String(), "failures", cb.consecutiveFail)
	case StateHalfOpen:
		slog.Info("resilience: breaker probing", "breaker", cb.name)
	case StateClosed:
		cb.consecutiveFail = 0
		slog.Info("resilience: breaker closed", "breaker", cb.name, "from", from.String())
	}
}

// State returns the current state. An open breaker whose reset timeout has
// elapsed reports [StateHalfOpen]; the transition itself happens on the next
// [CircuitBreaker.Execute].
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
}
