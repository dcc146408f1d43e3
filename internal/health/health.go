// Package health serves the liveness and readiness probes.
//
// /healthz answers 200 whenever the process can serve HTTP. /readyz runs the
// registered [Checker] probes and answers 200 only when all of them pass, so
// an orchestrator can hold traffic until the fragment store is reachable.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when the dependency can
// serve requests; it must respect context cancellation.
type Checker struct {
	// Name keys the probe's entry in the readiness report ("database").
	Name string

	Check func(ctx context.Context) error
}

// report is the JSON body of both probes.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handler answers /healthz and /readyz. The checker list is fixed at
// construction, so the handler is safe for concurrent use.
type Handler struct {
	checkers []Checker
}

// New builds a [Handler] over the given checkers. /readyz runs them
// sequentially in the order given and never short-circuits, so the report
// always names every failing dependency.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...)}
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe. Reaching it at all is the signal, so it
// unconditionally reports ok.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeReport(w, http.StatusOK, report{Status: "ok"})
}

// Readyz runs every checker under a [probeTimeout] deadline and reports 503
// with per-check detail when any of them fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := report{
		Status: "ok",
		Checks: make(map[string]checkResult, len(h.checkers)),
	}
	code := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			rep.Checks[c.Name] = checkResult{Status: "fail", Error: err.Error()}
			rep.Status = "fail"
			code = http.StatusServiceUnavailable
			continue
		}
		rep.Checks[c.Name] = checkResult{Status: "ok"}
	}

	writeReport(w, code, rep)
}

func writeReport(w http.ResponseWriter, code int, rep report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
