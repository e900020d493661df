package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func serve(t *testing.T, h *Handler, path string) (int, Report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep Report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, rep
}

func ok(context.Context) error { return nil }

func TestHealthz_IgnoresCheckers(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "annotator", Check: func(context.Context) error { return errors.New("down") }})
	code, rep := serve(t, h, "/healthz")
	if code != http.StatusOK || rep.Status != StatusOK || rep.Checks != nil {
		t.Errorf("healthz = %d %+v", code, rep)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	down := func(context.Context) error { return errors.New("connection refused") }
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "annotator", Check: ok}, {Name: "rewriter", Check: ok, Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: StatusOK,
		},
		{
			name:       "optional failure degrades",
			checkers:   []Checker{{Name: "annotator", Check: ok}, {Name: "rewriter", Check: down, Optional: true}},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name:       "required failure fails",
			checkers:   []Checker{{Name: "annotator", Check: down}, {Name: "rewriter", Check: down, Optional: true}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusFail,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, rep := serve(t, New(tt.checkers...), "/readyz")
			if code != tt.wantCode || rep.Status != tt.wantStatus {
				t.Errorf("readyz = %d %q, want %d %q", code, rep.Status, tt.wantCode, tt.wantStatus)
			}
			if len(rep.Checks) != len(tt.checkers) {
				t.Errorf("checks = %+v", rep.Checks)
			}
		})
	}
}

func TestCheck_ReportsErrors(t *testing.T) {
	t.Parallel()

	h := New(Checker{Name: "annotator", Check: func(context.Context) error { return errors.New("connection refused") }})
	got := h.Check(context.Background()).Checks["annotator"]
	if got.Status != StatusFail || got.Error != "connection refused" {
		t.Errorf("result = %+v", got)
	}
}

func TestCheck_RunsConcurrently(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	wait := func(ctx context.Context) error {
		started <- struct{}{}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	go func() {
		<-started
		<-started
		close(release)
	}()

	done := make(chan Report, 1)
	go func() {
		done <- New(Checker{Name: "a", Check: wait}, Checker{Name: "b", Check: wait}).Check(context.Background())
	}()
	select {
	case rep := <-done:
		if rep.Status != StatusOK {
			t.Errorf("status = %q", rep.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("checkers did not run concurrently")
	}
}

func TestCheck_TimeoutIsApplied(t *testing.T) {
	t.Parallel()

	var deadline time.Time
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}})
	h.Check(context.Background())
	if deadline.IsZero() || time.Until(deadline) > checkTimeout {
		t.Errorf("deadline = %v, want at most %v from now", deadline, checkTimeout)
	}
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestPingAndAvailability(t *testing.T) {
	t.Parallel()

	available := false
	h := New(
		Ping("annotator", pinger{}),
		Availability("rewriter", func() bool { return available }),
	)

	rep := h.Check(context.Background())
	if rep.Status != StatusDegraded || rep.Checks["rewriter"].Error != ErrUnavailable.Error() {
		t.Errorf("report = %+v", rep)
	}

	available = true
	if rep := h.Check(context.Background()); rep.Status != StatusOK {
		t.Errorf("status = %q, want ok", rep.Status)
	}

	if rep := New(Ping("annotator", pinger{err: errors.New("refused")})).Check(context.Background()); rep.Status != StatusFail {
		t.Errorf("status = %q, want fail", rep.Status)
	}
}
