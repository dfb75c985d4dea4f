package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "taxomap"

// Metrics holds all OTEL metric instruments for taxomap.
// All counters are cumulative (monotonic) and safe for concurrent use.
type Metrics struct {
	// LLM token counters (partitioned by provider + model via attributes)
	InputTokens  metric.Int64Counter
	OutputTokens metric.Int64Counter

	// Classification counters (partitioned by status and source: prefilter, llm, error)
	Classifications metric.Int64Counter

	// Guard and transport outcomes
	Coercions      metric.Int64Counter
	RemoteFailures metric.Int64Counter
}

// NewMetrics creates all metric instruments. Returns no-op instruments
// when no MeterProvider is registered (safe to call unconditionally).
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	// --- LLM token counters ---

	m.InputTokens, err = meter.Int64Counter("llm.tokens.input",
		metric.WithDescription("Total LLM input tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	m.OutputTokens, err = meter.Int64Counter("llm.tokens.output",
		metric.WithDescription("Total LLM output tokens consumed"),
		metric.WithUnit("{token}"))
	if err != nil {
		return nil, err
	}

	// --- Classification counters ---

	m.Classifications, err = meter.Int64Counter("classifications.total",
		metric.WithDescription("Story classifications partitioned by status (MAPPED, UNMAPPED) and source (prefilter, llm, error)"))
	if err != nil {
		return nil, err
	}

	m.Coercions, err = meter.Int64Counter("classifications.coerced",
		metric.WithDescription("Model answers naming a label outside the taxonomy, coerced to [UNMAPPED]"))
	if err != nil {
		return nil, err
	}

	m.RemoteFailures, err = meter.Int64Counter("llm.failures",
		metric.WithDescription("Remote classifier calls that failed (transport, timeout, status, empty response)"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordTokens records LLM token usage on the metric counters.
func (m *Metrics) RecordTokens(ctx context.Context, provider, model string, input, output int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("llm.provider", provider),
		attribute.String("llm.model", model),
	)
	m.InputTokens.Add(ctx, input, attrs)
	m.OutputTokens.Add(ctx, output, attrs)
}

// RecordClassification records one finished case.
func (m *Metrics) RecordClassification(ctx context.Context, status, source string) {
	if m == nil {
		return
	}
	m.Classifications.Add(ctx, 1, metric.WithAttributes(
		attribute.String("classification.status", status),
		attribute.String("classification.source", source),
	))
}

// RecordCoercion records a label rejected by the allow-list.
func (m *Metrics) RecordCoercion(ctx context.Context) {
	if m == nil {
		return
	}
	m.Coercions.Add(ctx, 1)
}

// RecordRemoteFailure records a failed remote call.
func (m *Metrics) RecordRemoteFailure(ctx context.Context, provider string) {
	if m == nil {
		return
	}
	m.RemoteFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("llm.provider", provider),
	))
}
