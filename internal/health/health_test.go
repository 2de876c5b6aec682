package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// serve routes a request through the server's mux.
func serve(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestHealthzAlwaysOK(t *testing.T) {
	s := NewServer(":0")

	rec := serve(s, "/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestReadyzAllProbesPass(t *testing.T) {
	s := NewServer(":0",
		Probe{Name: "memory", Check: func(_ context.Context) error { return nil }},
		Probe{Name: "tts", Check: func(_ context.Context) error { return nil }},
	)

	rec := serve(s, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Checks["memory"] != "ok" || body.Checks["tts"] != "ok" {
		t.Errorf("unexpected checks %v", body.Checks)
	}
}

func TestReadyzProbeFails(t *testing.T) {
	s := NewServer(":0",
		Probe{Name: "memory", Check: func(_ context.Context) error {
			return errors.New("connection refused")
		}},
		Probe{Name: "tts", Check: func(_ context.Context) error { return nil }},
	)

	rec := serve(s, "/readyz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body report
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if body.Checks["memory"] != "fail: connection refused" {
		t.Errorf("memory check = %q", body.Checks["memory"])
	}
	if body.Checks["tts"] != "ok" {
		t.Errorf("tts check = %q", body.Checks["tts"])
	}
}

func TestReadyzNoProbes(t *testing.T) {
	s := NewServer(":0")

	rec := serve(s, "/readyz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestReadyzRespectsContextCancellation(t *testing.T) {
	s := NewServer(":0",
		Probe{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx)
	s.srv.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestMetricsEndpointRegistered(t *testing.T) {
	s := NewServer(":0")

	rec := serve(s, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}
