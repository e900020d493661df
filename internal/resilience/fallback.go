package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/lingobot/internal/observe"
)

// ErrAllFailed is returned when every backend of a [FallbackGroup] failed or
// was skipped by its breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// CircuitBreaker is the template for the per-backend breakers. Its Name
	// is replaced by the backend name.
	CircuitBreaker CircuitBreakerConfig

	// Kind labels the backends in metrics, e.g. "llm".
	Kind string

	// Metrics receives one provider request per attempted backend and one
	// provider error per failure. Nil disables recording.
	Metrics *observe.Metrics
}

// BackendStatus is a snapshot of one backend in a [FallbackGroup].
type BackendStatus struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup tries a primary backend and then its fallbacks in
// registration order, skipping any whose breaker is open.
//
// Backends must be registered before the group is shared between
// goroutines.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup returns a group with primary as its first backend.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend after the ones already registered.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Status reports every backend in order.
func (fg *FallbackGroup[T]) Status() []BackendStatus {
	out := make([]BackendStatus, len(fg.entries))
	for i := range fg.entries {
		out[i] = BackendStatus{Name: fg.entries[i].name, State: fg.entries[i].breaker.State().String()}
	}
	return out
}

// Available reports whether at least one backend would currently admit a
// call.
func (fg *FallbackGroup[T]) Available() bool {
	for i := range fg.entries {
		if fg.entries[i].breaker.State() != StateOpen {
			return true
		}
	}
	return false
}

// Execute is [ExecuteWithResult] for calls without a result value.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(context.Context, T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

// ExecuteWithResult calls fn on each backend in order until one succeeds.
// It stops early once ctx is done. When no backend succeeds the returned
// error wraps [ErrAllFailed] and the last backend error.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	log := observe.Logger(ctx)
	for i := range fg.entries {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%w: %w", ErrAllFailed, err)
		}
		entry := &fg.entries[i]

		var result R
		err := entry.breaker.Execute(ctx, func(ctx context.Context) error {
			var innerErr error
			result, innerErr = fn(ctx, entry.value)
			return innerErr
		})
		if errors.Is(err, ErrCircuitOpen) {
			log.Debug("resilience: skipping backend, circuit open", "backend", entry.name)
			lastErr = err
			continue
		}
		if err == nil {
			fg.record(ctx, entry.name, "ok")
			return result, nil
		}
		fg.record(ctx, entry.name, "error")
		lastErr = err
		log.Warn("resilience: backend failed, trying next", "backend", entry.name, "err", err)
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

func (fg *FallbackGroup[T]) record(ctx context.Context, name, status string) {
	if fg.cfg.Metrics == nil {
		return
	}
	fg.cfg.Metrics.RecordProviderRequest(ctx, name, fg.cfg.Kind, status)
	if status != "ok" {
		fg.cfg.Metrics.RecordProviderError(ctx, name, fg.cfg.Kind)
	}
}

var errNilResponse = errors.New("resilience: backend returned no response")
