package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/telraneng/chunkcoder/internal/hardware"
)

func TestRegisterRoutesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHandler(reg, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != 200 {
		t.Fatalf("expected 200, got %d", rw.Code)
	}
}

func TestRegisterRoutesHealth(t *testing.T) {
	h := NewHandler(nil, nil)
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	for _, path := range []string{"/health", "/ready", "/live"} {
		req := httptest.NewRequest("GET", path, nil)
		rw := httptest.NewRecorder()
		r.ServeHTTP(rw, req)
		if rw.Code != 200 {
			t.Fatalf("%s: expected 200, got %d", path, rw.Code)
		}
	}
}

func TestReadyCheckFailureReturns503(t *testing.T) {
	h := NewHandler(nil, func(context.Context) error { return errors.New("not loaded") })
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("GET", "/ready", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != 503 {
		t.Fatalf("expected 503, got %d", rw.Code)
	}
}

func TestRegisterRoutesHardware(t *testing.T) {
	h := NewHandler(nil, nil).WithHardwareConfig(hardware.Config{EnableAESNI: true})
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	req := httptest.NewRequest("GET", "/hardware", nil)
	rw := httptest.NewRecorder()
	r.ServeHTTP(rw, req)
	if rw.Code != 200 {
		t.Fatalf("expected 200, got %d", rw.Code)
	}

	var info hardware.Info
	if err := json.Unmarshal(rw.Body.Bytes(), &info); err != nil {
		t.Fatalf("decoding /hardware response: %v", err)
	}
	if info.Architecture == "" {
		t.Fatal("expected a non-empty architecture in /hardware response")
	}
}
