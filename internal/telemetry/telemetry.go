// Package telemetry wires up the tracer used to follow a Job across its
// pipeline stages — each job is one natural span boundary. It builds a
// TracerProvider over the stdout, OTLP/gRPC, and Jaeger exporters, and
// feeds the active span's trace ID into metrics.getExemplar's Prometheus
// exemplars.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// Exporter names accepted by NewProvider.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterJaeger = "jaeger"
)

// Config selects the trace exporter and destination.
type Config struct {
	Exporter    string // ExporterNone/Stdout/OTLP/Jaeger
	ServiceName string
	OTLPEndpoint   string // host:port, for ExporterOTLP
	JaegerEndpoint string // collector URL, for ExporterJaeger
}

// NewProvider builds a sdktrace.TracerProvider for cfg and registers it as
// the global provider. Callers should defer Shutdown on the returned
// provider.
func NewProvider(ctx context.Context, cfg Config) (*sdktrace.TracerProvider, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "", ExporterNone:
		tp := sdktrace.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	case ExporterStdout:
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		exp, err = otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	case ExporterJaeger:
		exp, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
	default:
		return nil, fmt.Errorf("telemetry: unknown exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: building %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer is a thin accessor so callers don't have to import go.opentelemetry.io/otel directly.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// TraceID extracts the active span's trace ID from ctx, mirroring
// metrics.getExemplar's exemplar-label extraction.
func TraceID(ctx context.Context) (string, bool) {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return "", false
	}
	return sc.TraceID().String(), true
}
