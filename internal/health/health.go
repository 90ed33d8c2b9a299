// Package health serves the liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz runs the
// registered dependency checks concurrently and answers 200 only when all of
// them pass, so a pod with a dead history store or no reachable model backend
// is taken out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pitchline-ai/pitchline/internal/history"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Check probes one dependency. It must respect context cancellation.
type Check func(ctx context.Context) error

// Handler serves the probe endpoints. Checks are registered before the server
// starts and the set is not mutated afterwards.
type Handler struct {
	checks map[string]Check
}

// New creates an empty Handler.
func New() *Handler {
	return &Handler{checks: make(map[string]Check)}
}

// Add registers a named readiness check. The name appears as a key in the
// /readyz response body.
func (h *Handler) Add(name string, check Check) *Handler {
	h.checks[name] = check
	return h
}

// AddStore registers a ping check against the call history store.
func (h *Handler) AddStore(store history.Store) *Handler {
	return h.Add("history", store.Ping)
}

// Register adds the probe routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz always answers 200. A process that reached this handler is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// Readyz runs all checks concurrently, each under its own timeout, and
// answers 503 when any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu      sync.Mutex
		results = make(map[string]string, len(h.checks))
		healthy = true
	)

	g, ctx := errgroup.WithContext(r.Context())
	for _, name := range h.names() {
		check := h.checks[name]
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			err := check(cctx)
			cancel()

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = "fail: " + err.Error()
				healthy = false
			} else {
				results[name] = "ok"
			}
			// Failures are reported per check, not propagated, so the
			// remaining checks still run to completion.
			return nil
		})
	}
	g.Wait()

	res := probeResponse{Status: "ok", Checks: results}
	status := http.StatusOK
	if !healthy {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func (h *Handler) names() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
