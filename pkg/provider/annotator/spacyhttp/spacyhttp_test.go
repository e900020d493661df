package spacyhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newSidecar(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty baseURL")
	}
}

func TestAnnotate_DecodesTokens(t *testing.T) {
	t.Parallel()

	var got annotateRequest
	srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != annotatePath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tokens":[
			{"text":"dogs","lemma":"dog","pos":"NOUN","tag":"NNS","dep":"nsubj","head":1},
			{"text":"bark","lemma":"bark","pos":"VERB","tag":"VBP","dep":"ROOT","head":1}
		]}`))
	})

	a, err := New(srv.URL+"/", WithModel("en_core_web_md"), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	doc, err := a.Annotate(context.Background(), "dogs bark")
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}

	if got.Text != "dogs bark" || got.Model != "en_core_web_md" {
		t.Errorf("request = %+v", got)
	}
	if len(doc.Tokens) != 2 {
		t.Fatalf("got %d tokens, want 2", len(doc.Tokens))
	}
	if doc.Tokens[0].Lemma != "dog" || doc.Tokens[0].Tag != "NNS" || doc.Tokens[0].Head != 1 {
		t.Errorf("token 0 = %+v", doc.Tokens[0])
	}
}

func TestAnnotate_EmptyTextSkipsRequest(t *testing.T) {
	t.Parallel()

	called := false
	srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	a, _ := New(srv.URL)
	doc, err := a.Annotate(context.Background(), "   ")
	if err != nil {
		t.Fatalf("Annotate: %v", err)
	}
	if len(doc.Tokens) != 0 || called {
		t.Errorf("expected empty doc without request, tokens=%d called=%v", len(doc.Tokens), called)
	}
}

func TestAnnotate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "model not loaded", wantSub: "status 500"},
		{name: "bad json", status: http.StatusOK, body: "{not json", wantSub: "decode"},
		{name: "dangling head", status: http.StatusOK, body: `{"tokens":[{"text":"x","head":3}]}`, wantSub: "outside"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			a, _ := New(srv.URL)
			_, err := a.Annotate(context.Background(), "x")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not contain %q", err, tt.wantSub)
			}
		})
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	healthy := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != healthPath {
			http.NotFound(w, r)
		}
	})
	a, _ := New(healthy.URL)
	if err := a.Ping(context.Background()); err != nil {
		t.Errorf("Ping healthy: %v", err)
	}

	down := newSidecar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	a, _ = New(down.URL)
	if err := a.Ping(context.Background()); err == nil {
		t.Error("Ping should fail on 503")
	}
}

func TestWithTimeout_LeavesSharedClientAlone(t *testing.T) {
	t.Parallel()

	shared := &http.Client{Timeout: time.Minute}
	a, err := New("http://localhost:8000", WithHTTPClient(shared), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if shared.Timeout != time.Minute {
		t.Errorf("shared client timeout = %v, want 1m", shared.Timeout)
	}
	if a.httpClient == shared || a.httpClient.Timeout != 2*time.Second {
		t.Errorf("annotator client timeout = %v, want own client with 2s", a.httpClient.Timeout)
	}
}
