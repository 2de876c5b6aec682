// Package health serves the operational HTTP surface of a running call:
// Prometheus metrics plus liveness and readiness probes.
//
// Endpoints:
//
//   - /metrics — Prometheus scrape endpoint for the OTel metric bridge.
//   - /healthz — liveness probe; always returns 200 OK.
//   - /readyz  — readiness probe; 200 only when every registered [Probe]
//     passes (e.g. the memory store answers, the synthesis server is up).
//
// Probe responses are JSON with a top-level "status" field ("ok" or "fail")
// and a "checks" map with the outcome of each named probe.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// probeTimeout bounds a single readiness probe.
const probeTimeout = 5 * time.Second

// Probe is a named readiness check. Check returns nil when the dependency is
// usable and an error describing the failure otherwise. It must respect
// context cancellation.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

// report is the JSON body of probe responses.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Server is the operational HTTP server. The probe list is fixed at
// construction time; all handlers are safe for concurrent use.
type Server struct {
	probes []Probe
	srv    *http.Server
}

// NewServer creates a Server listening on addr once [Server.ListenAndServe]
// is called. Probes are evaluated sequentially on each /readyz request.
func NewServer(addr string, probes ...Probe) *Server {
	s := &Server{probes: append([]Probe(nil), probes...)}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("GET /readyz", s.readyz)
	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown is called. It never
// returns http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// healthz always reports ok. A process that can serve HTTP is alive.
func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// readyz reports ok only when every probe passes. Each probe runs with a
// probeTimeout deadline derived from the request context.
func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.probes))
	allOK := true

	for _, p := range s.probes {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		err := p.Check(ctx)
		cancel()

		if err != nil {
			checks[p.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[p.Name] = "ok"
		}
	}

	res := report{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

// writeJSON encodes v with the given status code, falling back to a
// plain-text 500 on encoding failure.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
