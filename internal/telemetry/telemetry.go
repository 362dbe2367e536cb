// Package telemetry configures OpenTelemetry tracing for rotord.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Init installs a global tracer provider exporting to endpoint over OTLP/HTTP.
// An empty endpoint disables tracing and returns a no-op shutdown.
func Init(ctx context.Context, serviceName, endpoint string) (func(context.Context) error, error) {
	if serviceName == "" {
		return nil, errors.New("telemetry: service name is required")
	}
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	opts, err := exporterOptions(endpoint)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(serviceName),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp.Shutdown, nil
}

// Middleware wraps handlers in an otelhttp server span named after the
// service. It uses whatever tracer provider is installed globally.
func Middleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	}
}

// otlpEndpoint is OTEL_EXPORTER_OTLP_ENDPOINT split into exporter options.
// A bare host:port is treated as a plaintext collector.
type otlpEndpoint struct {
	host     string
	path     string
	insecure bool
}

func parseEndpoint(endpoint string) (otlpEndpoint, error) {
	parsed, err := url.Parse(endpoint)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return otlpEndpoint{host: endpoint, insecure: true}, nil
	}
	if parsed.Host == "" {
		return otlpEndpoint{}, fmt.Errorf("telemetry: invalid OTLP endpoint: %s", endpoint)
	}

	ep := otlpEndpoint{host: parsed.Host, insecure: parsed.Scheme == "http"}
	if parsed.Path != "" && parsed.Path != "/" {
		ep.path = parsed.Path
	}
	return ep, nil
}

func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	ep, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep.host)}
	if ep.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(ep.path))
	}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}
