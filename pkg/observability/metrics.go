package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder records turn-level metrics. Implementations must be safe for
// concurrent use; the tool node records from several goroutines.
type Recorder interface {
	RecordTurn(ctx context.Context, duration time.Duration, err error)
	RecordAssistantVisit(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordToolCall(ctx context.Context, tool string, duration time.Duration, isError bool)
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

func (NoopRecorder) RecordTurn(context.Context, time.Duration, error) {}

func (NoopRecorder) RecordAssistantVisit(context.Context, string, time.Duration, int, int, error) {}

func (NoopRecorder) RecordToolCall(context.Context, string, time.Duration, bool) {}

func (NoopRecorder) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}

// Metrics is the OpenTelemetry backed Recorder. Instruments are exported
// through a Prometheus registry owned by the instance.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	registry *prometheus.Registry

	turnDuration  metric.Float64Histogram
	turnsTotal    metric.Int64Counter
	turnErrors    metric.Int64Counter
	assistantRuns metric.Int64Counter
	llmDuration   metric.Float64Histogram
	llmErrors     metric.Int64Counter
	llmTokens     metric.Int64Counter
	toolDuration  metric.Float64Histogram
	toolCalls     metric.Int64Counter
	toolErrors    metric.Int64Counter
	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
}

// InitMetrics creates the metric instruments. It returns nil when
// metrics are disabled.
func InitMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(DefaultServiceName)
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}

	m := &Metrics{provider: provider, registry: registry}
	b := builder{meter: meter, ns: ns}

	m.turnDuration = b.histogram("turn_duration_seconds", "Turn duration in seconds")
	m.turnsTotal = b.counter("turns_total", "Total turns run")
	m.turnErrors = b.counter("turn_errors_total", "Turns that ended with a fatal error")
	m.assistantRuns = b.counter("assistant_visits_total", "Total assistant node visits")
	m.llmDuration = b.histogram("llm_request_duration_seconds", "LLM request duration in seconds")
	m.llmErrors = b.counter("llm_errors_total", "Total failed LLM invocations")
	m.llmTokens = b.counter("llm_tokens_total", "Total tokens reported by the LLM")
	m.toolDuration = b.histogram("tool_call_duration_seconds", "Tool call duration in seconds")
	m.toolCalls = b.counter("tool_calls_total", "Total tool calls")
	m.toolErrors = b.counter("tool_errors_total", "Tool calls that produced an error result")
	m.httpRequests = b.counter("http_requests_total", "Total HTTP requests")
	m.httpDuration = b.histogram("http_request_duration_seconds", "HTTP request duration in seconds")

	if b.err != nil {
		return nil, b.err
	}
	return m, nil
}

// builder creates instruments and keeps the first error.
type builder struct {
	meter metric.Meter
	ns    string
	err   error
}

func (b *builder) counter(name, desc string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(b.ns+"_"+name, metric.WithDescription(desc))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return c
}

func (b *builder) histogram(name, desc string) metric.Float64Histogram {
	h, err := b.meter.Float64Histogram(b.ns+"_"+name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return h
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) RecordTurn(ctx context.Context, duration time.Duration, err error) {
	m.turnDuration.Record(ctx, duration.Seconds())
	m.turnsTotal.Add(ctx, 1)
	if err != nil {
		m.turnErrors.Add(ctx, 1)
	}
}

func (m *Metrics) RecordAssistantVisit(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	attrs := metric.WithAttributes(attribute.String("model", model))
	m.assistantRuns.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
		return
	}
	if inputTokens > 0 {
		m.llmTokens.Add(ctx, int64(inputTokens), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "input")))
	}
	if outputTokens > 0 {
		m.llmTokens.Add(ctx, int64(outputTokens), metric.WithAttributes(
			attribute.String("model", model), attribute.String("direction", "output")))
	}
}

func (m *Metrics) RecordToolCall(ctx context.Context, tool string, duration time.Duration, isError bool) {
	attrs := metric.WithAttributes(attribute.String("tool", tool))
	m.toolDuration.Record(ctx, duration.Seconds(), attrs)
	m.toolCalls.Add(ctx, 1, attrs)
	if isError {
		m.toolErrors.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopRecorder{}
)
