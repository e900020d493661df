// Package server exposes the correction service over HTTP.
//
// Routes:
//
//   - GET  /chatbot/get_response/?message=... returns {"reply": "..."}
//   - POST /api/analyze with {"text": "..."} returns the structured result
//   - GET  /ws upgrades to a websocket chat; each {"message": "..."} frame
//     is answered with a {"reply": "..."} frame
//   - GET  /metrics serves Prometheus metrics
//   - GET  /healthz and /readyz serve the health checks
//
// Every route is wrapped by [observe.Middleware].
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/lingobot/internal/correction"
	"github.com/MrWong99/lingobot/internal/health"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/reply"
)

const (
	defaultMaxMessageBytes = 16 << 10
	shutdownTimeout        = 15 * time.Second
)

// Surface labels for the reply metric.
const (
	SurfaceHTTP      = "http"
	SurfaceWebsocket = "ws"
)

// ChatMessage is an incoming websocket frame.
type ChatMessage struct {
	Message string `json:"message"`
}

// ChatReply is the response body of the legacy endpoint and every outgoing
// websocket frame.
type ChatReply struct {
	Reply string `json:"reply"`
}

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	Text string `json:"text"`
}

// AnalyzeResponse is the body of a successful POST /api/analyze. Reply
// holds the same markdown the chat surfaces return.
type AnalyzeResponse struct {
	*correction.Result
	Reply string `json:"reply"`
}

type errorBody struct {
	Error string `json:"error"`
}

// Option is a functional option for configuring a [Server].
type Option func(*Server)

// WithHealth mounts the health checks.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		s.health = h
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithMetricsHandler replaces the /metrics handler. Default:
// [promhttp.Handler].
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// WithMaxMessageBytes limits the size of request bodies and websocket
// frames. Default: 16 KiB.
func WithMaxMessageBytes(n int64) Option {
	return func(s *Server) {
		s.maxMessageBytes = n
	}
}

// WithOriginPatterns lists the cross-origin hosts allowed to open the
// websocket chat.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) {
		s.originPatterns = patterns
	}
}

// Server routes HTTP requests to a [reply.Service].
type Server struct {
	service         *reply.Service
	health          *health.Handler
	metrics         *observe.Metrics
	metricsHandler  http.Handler
	maxMessageBytes int64
	originPatterns  []string

	handler http.Handler
}

// New builds a Server and its route table.
func New(svc *reply.Service, opts ...Option) *Server {
	s := &Server{
		service:         svc,
		maxMessageBytes: defaultMaxMessageBytes,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /chatbot/get_response/", s.handleGetResponse)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	mux.Handle("GET /metrics", s.metricsHandler)
	if s.health != nil {
		s.health.Register(mux)
	}
	s.handler = observe.Middleware(s.metrics)(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves on addr until ctx is cancelled and then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is like [Server.Run] on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func (s *Server) handleGetResponse(w http.ResponseWriter, r *http.Request) {
	msg := r.URL.Query().Get("message")
	if int64(len(msg)) > s.maxMessageBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "message too large"})
		return
	}
	out := s.service.Reply(r.Context(), msg)
	s.metrics.RecordReply(r.Context(), SurfaceHTTP)
	writeJSON(w, http.StatusOK, ChatReply{Reply: out})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, s.maxMessageBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body: " + err.Error()})
		return
	}

	res, err := s.service.Analyze(r.Context(), req.Text)
	switch {
	case errors.Is(err, reply.ErrEmptyInput):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "text must not be empty"})
		return
	case err != nil:
		observe.Logger(r.Context()).Error("server: analyze failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: reply.ErrorMessage(err)})
		return
	}
	s.metrics.RecordReply(r.Context(), SurfaceHTTP)
	writeJSON(w, http.StatusOK, AnalyzeResponse{Result: res, Reply: reply.Format(res)})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		observe.Logger(r.Context()).Warn("server: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.maxMessageBytes)

	ctx := r.Context()
	s.metrics.ActiveConnections.Add(ctx, 1)
	defer s.metrics.ActiveConnections.Add(context.WithoutCancel(ctx), -1)

	for {
		var msg ChatMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			default:
				if ctx.Err() == nil {
					observe.Logger(ctx).Debug("server: websocket read ended", "err", err)
				}
			}
			return
		}

		out := s.service.Reply(ctx, msg.Message)
		s.metrics.RecordReply(ctx, SurfaceWebsocket)
		if err := wsjson.Write(ctx, conn, ChatReply{Reply: out}); err != nil {
			observe.Logger(ctx).Debug("server: websocket write failed", "err", err)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
