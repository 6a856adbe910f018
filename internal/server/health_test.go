package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubPinger is a Pinger returning a fixed result.
type stubPinger struct {
	// name labels the probe in readiness responses.
	name string
	// err is the probe result.
	err error
}

func (p *stubPinger) Ping(context.Context) error { return p.err }
func (p *stubPinger) Name() string               { return p.name }

// Test_Health_Liveness verifies GET /health reports the fixed healthy body
// regardless of dependency state.
func Test_Health_Liveness(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{
		Pingers: []Pinger{&stubPinger{name: "qdrant", err: errors.New("down")}},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf(`want {"status":"healthy"}, got %v`, body)
	}
}

// Test_Ready_AllHealthy verifies 200 with per-dependency checks when every
// probe succeeds.
func Test_Ready_AllHealthy(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{
		Pingers: []Pinger{
			&stubPinger{name: "qdrant"},
			&stubPinger{name: "embedder"},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Ready {
		t.Error("want ready=true")
	}
	if len(resp.Checks) != 2 {
		t.Fatalf("want 2 checks, got %d", len(resp.Checks))
	}
	for _, c := range resp.Checks {
		if !c.OK || c.Error != "" {
			t.Errorf("check %q: %+v", c.Name, c)
		}
	}
}

// Test_Ready_DependencyDown verifies 503 with the failing dependency named
// when a probe fails.
func Test_Ready_DependencyDown(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &Config{
		Pingers: []Pinger{
			&stubPinger{name: "qdrant"},
			&stubPinger{name: "llm", err: errors.New("connection refused")},
		},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want 503, got %d", rec.Code)
	}
	var resp readyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Ready {
		t.Error("want ready=false")
	}
	var foundFailure bool
	for _, c := range resp.Checks {
		if c.Name == "llm" && !c.OK && c.Error != "" {
			foundFailure = true
		}
	}
	if !foundFailure {
		t.Errorf("failing llm check not reported: %+v", resp.Checks)
	}
}

// Test_Ready_NoPingers verifies liveness-only mode: 200 with no checks.
func Test_Ready_NoPingers(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: want 200, got %d", rec.Code)
	}
}
