// Package spacyhttp provides an [annotator.Annotator] that delegates
// tokenization, tagging and dependency parsing to a spaCy sidecar exposed
// over HTTP.
//
// The sidecar contract is minimal:
//
//	POST /annotate   {"text": "...", "model": "en_core_web_sm"}
//	             ->  {"tokens": [{"text","lemma","pos","tag","dep","head"}, ...]}
//	GET  /health     -> 200 OK
//
// head is the absolute index of the head token within the response; the
// root token points at itself.
//
// Typical usage:
//
//	a, err := spacyhttp.New("http://localhost:8000",
//	    spacyhttp.WithModel("en_core_web_sm"),
//	    spacyhttp.WithTimeout(5*time.Second),
//	)
//	doc, err := a.Annotate(ctx, "he dont like apples")
package spacyhttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/lingobot/pkg/provider/annotator"
)

var _ annotator.Annotator = (*Annotator)(nil)

const (
	defaultModel    = "en_core_web_sm"
	defaultTimeout  = 10 * time.Second
	annotatePath    = "/annotate"
	healthPath      = "/health"
	maxResponseSize = 4 << 20
)

// Option is a functional option for configuring an [Annotator].
type Option func(*Annotator)

// WithModel sets the spaCy pipeline name sent with every request.
// Defaults to "en_core_web_sm".
func WithModel(model string) Option {
	return func(a *Annotator) {
		a.model = model
	}
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 10 s. A client
// passed via [WithHTTPClient] is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(a *Annotator) {
		c := *a.httpClient
		c.Timeout = d
		a.httpClient = &c
	}
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(a *Annotator) {
		a.httpClient = c
	}
}

// Annotator is an HTTP client for a spaCy annotation sidecar.
// It is safe for concurrent use.
type Annotator struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates an Annotator targeting the sidecar at baseURL
// (e.g., "http://localhost:8000").
func New(baseURL string, opts ...Option) (*Annotator, error) {
	if baseURL == "" {
		return nil, errors.New("spacyhttp: baseURL must not be empty")
	}
	a := &Annotator{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(a)
	}
	return a, nil
}

type annotateRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

// Annotate implements [annotator.Annotator].
func (a *Annotator) Annotate(ctx context.Context, text string) (*annotator.Doc, error) {
	if strings.TrimSpace(text) == "" {
		return &annotator.Doc{}, nil
	}

	data, err := json.Marshal(annotateRequest{Text: text, Model: a.model})
	if err != nil {
		return nil, fmt.Errorf("spacyhttp: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+annotatePath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("spacyhttp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("spacyhttp: POST %s: %w", annotatePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("spacyhttp: POST %s returned status %d: %s",
			annotatePath, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var doc annotator.Doc
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("spacyhttp: decode response: %w", err)
	}
	if err := validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Ping checks that the sidecar answers its health endpoint.
func (a *Annotator) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+healthPath, nil)
	if err != nil {
		return fmt.Errorf("spacyhttp: create request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spacyhttp: GET %s: %w", healthPath, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("spacyhttp: GET %s returned status %d", healthPath, resp.StatusCode)
	}
	return nil
}

// validate rejects responses whose head indices point outside the token list.
func validate(doc *annotator.Doc) error {
	for i, t := range doc.Tokens {
		if t.Head < 0 || t.Head >= len(doc.Tokens) {
			return fmt.Errorf("spacyhttp: token %d (%q) has head %d outside [0,%d)", i, t.Text, t.Head, len(doc.Tokens))
		}
	}
	return nil
}
