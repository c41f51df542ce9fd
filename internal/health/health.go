// Package health serves liveness and readiness probes for the Elsie server.
//
//   - /healthz — liveness; 200 whenever the process serves HTTP.
//   - /readyz  — readiness; 200 only when every registered probe passes
//     (database reachable, Discord gateway up, and so on).
//
// Responses are JSON with a "status" field ("ok" or "fail"), the process
// uptime, and a per-probe result map.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named dependency check. Check returns nil when the dependency
// is healthy; it must respect context cancellation.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type report struct {
	Status string            `json:"status"`
	Uptime string            `json:"uptime"`
	Probes map[string]string `json:"probes,omitempty"`
}

// Handler answers the health endpoints. The probe list is fixed at
// construction; Handler is safe for concurrent use.
type Handler struct {
	started time.Time
	probes  []Probe
}

// New creates a Handler evaluating probes in order on each /readyz request.
func New(probes ...Probe) *Handler {
	p := make([]Probe, len(probes))
	copy(p, probes)
	return &Handler{started: time.Now(), probes: p}
}

// Healthz always answers 200. A process that serves HTTP is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok", Uptime: h.uptime()})
}

// Readyz answers 200 only when every probe passes. Each probe runs under a
// deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make(map[string]string, len(h.probes))
	ready := true

	for _, p := range h.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			results[p.Name] = "fail: " + err.Error()
			ready = false
		} else {
			results[p.Name] = "ok"
		}
	}

	res := report{Status: "ok", Uptime: h.uptime(), Probes: results}
	status := http.StatusOK
	if !ready {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func (h *Handler) uptime() string {
	return time.Since(h.started).Round(time.Second).String()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
