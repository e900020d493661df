// Package health provides HTTP liveness and readiness handlers.
//
// The package exposes two endpoints:
//
//   - /healthz is the liveness check and always returns 200 OK.
//   - /readyz is the readiness check. It runs every registered [Checker]
//     concurrently and returns 503 when a required checker fails.
//
// A failing optional checker (for example the rewrite backend, without which
// corrections still work) reports the overall status "degraded" and keeps
// the 200 status code.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// checkTimeout is the maximum time a single readiness check may take before
// the context is cancelled.
const checkTimeout = 5 * time.Second

// Overall and per-check status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker is a named readiness check.
type Checker struct {
	// Name is the key of this check in the JSON response, e.g. "annotator".
	Name string

	// Check tests the dependency. It must respect context cancellation.
	Check func(ctx context.Context) error

	// Optional marks a dependency the service can run without.
	Optional bool
}

// Pinger is implemented by collaborators with a cheap reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a required Checker that calls p.Ping.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

// ErrUnavailable is reported by [Availability] checkers.
var ErrUnavailable = errors.New("health: no backend available")

// Availability returns an optional Checker that fails while available
// reports false. It suits breaker-guarded backends, whose state is known
// without a network round trip.
func Availability(name string, available func() bool) Checker {
	return Checker{
		Name:     name,
		Optional: true,
		Check: func(context.Context) error {
			if !available() {
				return ErrUnavailable
			}
			return nil
		},
	}
}

// CheckResult is the outcome of one checker.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the JSON body of both endpoints.
type Report struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
}

// New returns a [Handler] that evaluates checkers on each /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Healthz is a liveness check that always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: StatusOK})
}

// Readyz runs every checker and writes the [Report].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Check(r.Context())
	status := http.StatusOK
	if rep.Status == StatusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, rep)
}

// Check runs every checker concurrently, each bounded by its own timeout,
// and aggregates the results.
func (h *Handler) Check(ctx context.Context) Report {
	results := make([]CheckResult, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() {
			results[i] = run(ctx, c)
		})
	}
	wg.Wait()

	rep := Report{Status: StatusOK, Checks: make(map[string]CheckResult, len(h.checkers))}
	for i, c := range h.checkers {
		res := results[i]
		rep.Checks[c.Name] = res
		switch {
		case res.Status == StatusOK:
		case c.Optional:
			if rep.Status == StatusOK {
				rep.Status = StatusDegraded
			}
		default:
			rep.Status = StatusFail
		}
	}
	return rep
}

func run(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	res := CheckResult{Status: StatusOK, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = StatusFail
		res.Error = err.Error()
	}
	return res
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
