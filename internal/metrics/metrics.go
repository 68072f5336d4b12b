// Package metrics instruments the coder pipeline: promauto-constructed
// counters/histograms with exemplar-via-trace-context plumbing, covering
// chunk coder job outcomes rather than HTTP request counters.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
)

var defaultRegistry = prometheus.DefaultRegisterer

// Metrics holds every coder-job metric this build exposes.
type Metrics struct {
	jobsTotal          *prometheus.CounterVec
	jobDuration        *prometheus.HistogramVec
	jobErrors          *prometheus.CounterVec
	bytesProcessed     *prometheus.CounterVec
	erasureFailures    *prometheus.CounterVec
	digestMismatches   prometheus.Counter
	bufferPoolHits     *prometheus.CounterVec
	bufferPoolMisses   *prometheus.CounterVec
	hardwareAccelEnabled *prometheus.GaugeVec
	goroutines         prometheus.Gauge
	memoryAllocBytes   prometheus.Gauge
}

// NewMetrics registers every metric against the default Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(defaultRegistry)
}

// NewMetricsWithRegistry registers against reg, letting tests use a private
// registry to avoid collisions across parallel test runs.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		jobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coder_jobs_total",
				Help: "Total number of chunk coder jobs run",
			},
			[]string{"direction", "parity_type"},
		),
		jobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coder_job_duration_seconds",
				Help:    "Chunk coder job duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"direction", "parity_type"},
		),
		jobErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coder_job_errors_total",
				Help: "Total number of chunk coder job errors by kind",
			},
			[]string{"direction", "error_kind"},
		),
		bytesProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coder_bytes_processed_total",
				Help: "Total bytes passed through the coder pipeline",
			},
			[]string{"direction"},
		),
		erasureFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coder_erasure_failures_total",
				Help: "Total erasure encode/decode failures by parity type",
			},
			[]string{"parity_type", "stage"},
		),
		digestMismatches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "coder_digest_mismatches_total",
				Help: "Total whole-chunk digest verification failures on decode",
			},
		),
		bufferPoolHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coder_buffer_pool_hits_total",
				Help: "Total buffer pool hits",
			},
			[]string{"size_class"},
		),
		bufferPoolMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coder_buffer_pool_misses_total",
				Help: "Total buffer pool misses",
			},
			[]string{"size_class"},
		),
		hardwareAccelEnabled: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coder_hardware_acceleration_enabled",
				Help: "Hardware acceleration status (1=enabled, 0=disabled)",
			},
			[]string{"type"},
		),
		goroutines: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coder_goroutines",
				Help: "Number of goroutines",
			},
		),
		memoryAllocBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "coder_memory_alloc_bytes",
				Help: "Bytes allocated and not yet freed",
			},
		),
	}
}

// RecordJob records one completed job's outcome.
func (m *Metrics) RecordJob(ctx context.Context, direction, parityType string, duration time.Duration, bytes int64) {
	labels := prometheus.Labels{"direction": direction, "parity_type": parityType}
	if exemplar := getExemplar(ctx); exemplar != nil {
		if adder, ok := m.jobsTotal.With(labels).(prometheus.ExemplarAdder); ok {
			adder.AddWithExemplar(1, exemplar)
		} else {
			m.jobsTotal.With(labels).Inc()
		}
		if observer, ok := m.jobDuration.With(labels).(prometheus.ExemplarObserver); ok {
			observer.ObserveWithExemplar(duration.Seconds(), exemplar)
		} else {
			m.jobDuration.With(labels).Observe(duration.Seconds())
		}
	} else {
		m.jobsTotal.With(labels).Inc()
		m.jobDuration.With(labels).Observe(duration.Seconds())
	}
	m.bytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordJobError records one job-level error by symbolic kind.
func (m *Metrics) RecordJobError(direction, errorKind string) {
	m.jobErrors.WithLabelValues(direction, errorKind).Inc()
}

// RecordErasureFailure records an erasure encode/decode failure.
func (m *Metrics) RecordErasureFailure(parityType, stage string) {
	m.erasureFailures.WithLabelValues(parityType, stage).Inc()
}

// RecordDigestMismatch records a whole-chunk digest verification failure.
func (m *Metrics) RecordDigestMismatch() {
	m.digestMismatches.Inc()
}

// RecordBufferPoolHit records a buffer pool hit for sizeClass ("small"/"large"/"oversize").
func (m *Metrics) RecordBufferPoolHit(sizeClass string) {
	m.bufferPoolHits.WithLabelValues(sizeClass).Inc()
}

// RecordBufferPoolMiss records a buffer pool miss for sizeClass.
func (m *Metrics) RecordBufferPoolMiss(sizeClass string) {
	m.bufferPoolMisses.WithLabelValues(sizeClass).Inc()
}

// SetHardwareAccelerationStatus sets the hardware acceleration gauge.
func (m *Metrics) SetHardwareAccelerationStatus(accelType string, enabled bool) {
	val := 0.0
	if enabled {
		val = 1.0
	}
	m.hardwareAccelEnabled.WithLabelValues(accelType).Set(val)
}

// UpdateSystemMetrics refreshes goroutine count and heap allocation gauges.
func (m *Metrics) UpdateSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.memoryAllocBytes.Set(float64(memStats.Alloc))
}

// StartSystemMetricsCollector periodically refreshes the system gauges until ctx is done.
func (m *Metrics) StartSystemMetricsCollector(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.UpdateSystemMetrics()
			}
		}
	}()
}

func getExemplar(ctx context.Context) prometheus.Labels {
	if ctx == nil {
		return nil
	}
	spanContext := trace.SpanFromContext(ctx).SpanContext()
	if spanContext.IsValid() {
		return prometheus.Labels{"trace_id": spanContext.TraceID().String()}
	}
	return nil
}
