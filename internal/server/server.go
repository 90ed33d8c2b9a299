// Package server exposes the HTTP surface the call UI consumes: the four
// coaching endpoints, call history, the playbook tree, the live capture
// websocket, and the operational probes.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pitchline-ai/pitchline/internal/coach"
	"github.com/pitchline-ai/pitchline/internal/health"
	"github.com/pitchline-ai/pitchline/internal/history"
	"github.com/pitchline-ai/pitchline/internal/observe"
	"github.com/pitchline-ai/pitchline/internal/session"
	"github.com/pitchline-ai/pitchline/pkg/capture"
)

// EngineFactory creates a fresh transcription engine for one websocket
// connection. Nil means live capture is not configured.
type EngineFactory func() (capture.Engine, error)

// Server holds the handler dependencies. Construct with New and mount the
// result of Handler on an http.Server.
type Server struct {
	coach     *coach.Coach
	store     history.Store
	newEngine EngineFactory
	metrics   *observe.Metrics
	log       *slog.Logger
	health    *health.Handler
	gate      *session.Gate

	// state holds the live call session. Reset swaps the whole pointer, so
	// reads go through sessionState.
	stateMu sync.Mutex
	state   *session.State
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithMetrics sets the metrics sink. Defaults to the package-level instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCaptureEngine enables the live capture stream, using factory to create
// one engine per websocket connection.
func WithCaptureEngine(factory EngineFactory) Option {
	return func(s *Server) { s.newEngine = factory }
}

// WithHealth sets the probe handler. Defaults to a handler that only checks
// the history store.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithGate sets the analysis gate applied to coach requests that declare a
// channel. Defaults to a gate with the package defaults.
func WithGate(g *session.Gate) Option {
	return func(s *Server) { s.gate = g }
}

// New creates a Server backed by the given coaching layer and history store.
func New(c *coach.Coach, store history.Store, opts ...Option) *Server {
	s := &Server{
		coach: c,
		store: store,
		log:   slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.health == nil {
		s.health = health.New().AddStore(store)
	}
	if s.gate == nil {
		s.gate = session.NewGate(session.DefaultDebounce, session.DefaultMinGrowth)
	}
	s.state = session.NewState()
	return s
}

// Handler builds the routed handler with logging and metrics middleware
// applied to every endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/coach/pains", s.handlePains)
	mux.HandleFunc("POST /v1/coach/mirror", s.handleMirror)
	mux.HandleFunc("POST /v1/coach/note", s.handleNote)
	mux.HandleFunc("POST /v1/coach/objection", s.handleObjection)

	mux.HandleFunc("GET /v1/history", s.handleHistoryList)
	mux.HandleFunc("POST /v1/history", s.handleHistorySave)
	mux.HandleFunc("DELETE /v1/history/{id}", s.handleHistoryDelete)

	mux.HandleFunc("GET /v1/session", s.handleSessionGet)
	mux.HandleFunc("DELETE /v1/session", s.handleSessionReset)
	mux.HandleFunc("PUT /v1/session/answers/{id}", s.handleSessionAnswer)
	mux.HandleFunc("POST /v1/session/notes", s.handleSessionNote)
	mux.HandleFunc("POST /v1/session/suggestions", s.handleSuggestionMerge)
	mux.HandleFunc("POST /v1/session/suggestions/{id}/accept", s.handleSuggestionAccept)
	mux.HandleFunc("POST /v1/session/suggestions/{id}/reject", s.handleSuggestionReject)

	mux.HandleFunc("GET /v1/playbook", s.handlePlaybook)

	mux.HandleFunc("GET /v1/capture/stream", s.handleCaptureStream)

	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics, s.log)(mux)
}

// apiError is the JSON error envelope shared by all endpoints.
type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	codeInvalidRequest = "invalid_request"
	codeNotFound       = "not_found"
	codeUnsupported    = "unsupported"
	codeDebounced      = "debounced"
	codeInternal       = "internal"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// The status line is already on the wire, so logging is all that is
		// left to do.
		slog.Error("response encoding failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	var e apiError
	e.Error.Code = code
	e.Error.Message = message
	writeJSON(w, status, e)
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
// It writes the error response itself and reports whether decoding succeeded.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) storeError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, codeNotFound, "record not found")
		return
	}
	s.log.Error("history store failed", "op", op, "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "history store unavailable")
}
