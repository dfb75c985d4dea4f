// Package otel wires OpenTelemetry for taxomap.
//
// When an OTLP endpoint is configured (config file, OTEL_EXPORTER_OTLP_ENDPOINT)
// classification spans and metrics are exported over HTTP; otherwise every
// instrument is a no-op. Extra exporter headers, e.g. Langfuse basic auth,
// come from otel_headers or OTEL_EXPORTER_OTLP_HEADERS.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "taxomap"

// metricInterval is how often metrics are pushed to the collector.
const metricInterval = 15 * time.Second

// Config selects the OTLP destination.
type Config struct {
	Endpoint string // OTLP base URL, e.g. "http://localhost:3000/api/public/otel"
	Headers  string // Comma-separated key=value pairs, e.g. "Authorization=Basic abc123"
	Version  string // Reported as service.version; "dev" when empty
}

// Telemetry holds the OTEL providers and metric instruments.
type Telemetry struct {
	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	Tracer  trace.Tracer
	Metrics *Metrics
}

// Enabled reports whether spans and metrics leave the process.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tp != nil
}

// parseHeaders parses the OTEL_EXPORTER_OTLP_HEADERS format
// ("key=value,key2=value2"). Malformed pairs are skipped.
func parseHeaders(raw string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		key, val, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		headers[key] = strings.TrimSpace(val)
	}
	return headers
}

// endpointParts splits an OTLP base URL into host:port and a path prefix.
// The SDK appends the signal suffixes (/v1/traces, /v1/metrics) to the prefix.
func endpointParts(endpoint string) (host, basePath string, insecure bool, err error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", "", false, fmt.Errorf("otel: invalid endpoint URL %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", "", false, fmt.Errorf("otel: endpoint %q has no host", endpoint)
	}
	return u.Host, strings.TrimRight(u.Path, "/"), u.Scheme == "http", nil
}

// Init sets up telemetry. With an empty endpoint it returns a Telemetry whose
// tracer and metrics are no-ops.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	t := &Telemetry{}

	if cfg.Endpoint != "" {
		if err := t.startExporters(ctx, cfg); err != nil {
			return nil, err
		}
	}

	t.Tracer = otel.Tracer(serviceName)

	metrics, err := NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("otel metrics: %w", err)
	}
	t.Metrics = metrics

	return t, nil
}

func (t *Telemetry) startExporters(ctx context.Context, cfg Config) error {
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
	)
	if err != nil {
		return fmt.Errorf("otel resource: %w", err)
	}

	host, basePath, insecure, err := endpointParts(cfg.Endpoint)
	if err != nil {
		return err
	}
	headers := parseHeaders(cfg.Headers)

	traceOpts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithURLPath(basePath + "/v1/traces"),
		otlptracehttp.WithHeaders(headers),
	}
	metricOpts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(host),
		otlpmetrichttp.WithURLPath(basePath + "/v1/metrics"),
		otlpmetrichttp.WithHeaders(headers),
	}
	if insecure {
		traceOpts = append(traceOpts, otlptracehttp.WithInsecure())
		metricOpts = append(metricOpts, otlpmetrichttp.WithInsecure())
	}

	traceExp, err := otlptracehttp.New(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("otel trace exporter: %w", err)
	}
	metricExp, err := otlpmetrichttp.New(ctx, metricOpts...)
	if err != nil {
		return fmt.Errorf("otel metric exporter: %w", err)
	}

	t.tp = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	t.mp = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp,
			sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(t.tp)
	otel.SetMeterProvider(t.mp)
	return nil
}

// Shutdown flushes pending spans and metrics. A batch run calls it before
// exiting so the last spans are not lost.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.tp != nil {
		errs = append(errs, t.tp.Shutdown(ctx))
	}
	if t.mp != nil {
		errs = append(errs, t.mp.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
