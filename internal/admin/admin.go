// Package admin wires the coder service's operational surface: Prometheus
// scraping plus health/ready/live endpoints over a gorilla/mux router.
package admin

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/telraneng/chunkcoder/internal/hardware"
	"github.com/telraneng/chunkcoder/internal/metrics"
	"github.com/telraneng/chunkcoder/internal/middleware"
)

// Handler registers the admin routes against a private or the default
// Prometheus registry.
type Handler struct {
	registry    *prometheus.Registry
	readyCheck  func(context.Context) error
	hardwareCfg hardware.Config
}

// NewHandler builds an admin Handler. registry may be nil, in which case
// /metrics serves the default global registry via promhttp.Handler().
// readyCheck, if non-nil, is consulted by /ready (e.g. confirming the
// config watcher in internal/config has loaded at least once).
func NewHandler(registry *prometheus.Registry, readyCheck func(context.Context) error) *Handler {
	return &Handler{registry: registry, readyCheck: readyCheck}
}

// WithHardwareConfig sets the acceleration flags /hardware reports as
// active, mirroring internal/config.HardwareConfig's two knobs.
func (h *Handler) WithHardwareConfig(cfg hardware.Config) *Handler {
	h.hardwareCfg = cfg
	return h
}

// RegisterRoutes attaches the admin endpoints to r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.Handle("/metrics", h.metricsHandler()).Methods("GET")
	r.HandleFunc("/health", metrics.HealthHandler()).Methods("GET")
	r.HandleFunc("/ready", metrics.ReadinessHandler(h.readyCheck)).Methods("GET")
	r.HandleFunc("/live", metrics.LivenessHandler()).Methods("GET")
	r.HandleFunc("/hardware", h.hardwareHandler()).Methods("GET")
}

// hardwareHandler reports the CPU acceleration internal/cipheradapter's AES
// ciphers run under — informational only, since crypto/aes already
// dispatches to AES-NI/ARMv8 itself regardless of this config.
func (h *Handler) hardwareHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(hardware.Detect(h.hardwareCfg))
	}
}

func (h *Handler) metricsHandler() http.Handler {
	if h.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{})
}

// Serve starts the admin mux on addr, blocking until the server stops or
// ctx is cancelled. Every route runs through request logging and panic
// recovery (internal/middleware).
func Serve(ctx context.Context, addr string, h *Handler, logger *logrus.Logger) error {
	r := mux.NewRouter()
	h.RegisterRoutes(r)

	hwFields := func() logrus.Fields {
		info := hardware.Detect(h.hardwareCfg)
		return logrus.Fields{
			"aes_hardware_support":         info.AESHardwareSupport,
			"hardware_acceleration_active": info.AccelerationActive,
		}
	}

	var handler http.Handler = r
	handler = middleware.LoggingMiddleware(logger, "admin", hwFields)(handler)
	handler = middleware.RecoveryMiddleware(logger, "admin")(handler)

	srv := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
