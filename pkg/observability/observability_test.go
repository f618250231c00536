package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestInitMetrics_Disabled(t *testing.T) {
	m, err := InitMetrics(MetricsConfig{})
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMetrics_RecordAndExpose(t *testing.T) {
	m, err := InitMetrics(MetricsConfig{Enabled: true, Namespace: "scout"})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	ctx := context.Background()
	m.RecordTurn(ctx, 20*time.Millisecond, nil)
	m.RecordTurn(ctx, 5*time.Millisecond, errors.New("boom"))
	m.RecordAssistantVisit(ctx, "llama3.1", time.Millisecond, 10, 3, nil)
	m.RecordAssistantVisit(ctx, "llama3.1", time.Millisecond, 0, 0, errors.New("down"))
	m.RecordToolCall(ctx, "add", time.Millisecond, false)
	m.RecordToolCall(ctx, "nonexistent_tool", time.Millisecond, true)

	body := scrape(t, m.Handler())
	for _, name := range []string{
		"scout_turns_total",
		"scout_turn_errors_total",
		"scout_assistant_visits_total",
		"scout_llm_errors_total",
		"scout_tool_calls_total",
		"scout_tool_errors_total",
		"scout_turn_duration_seconds",
	} {
		assert.Contains(t, body, name)
	}
	assert.Contains(t, body, `tool="nonexistent_tool"`)
}

func TestManager_DisabledIsNoop(t *testing.T) {
	mgr := NewManager(Config{})
	require.NoError(t, mgr.Initialize(context.Background()))

	assert.Nil(t, mgr.Tracer())
	assert.IsType(t, NoopRecorder{}, mgr.Recorder())
	_, _, ok := mgr.MetricsHandler()
	assert.False(t, ok)

	ctx, span := mgr.Tracer().Start(context.Background(), SpanTurn)
	assert.NotNil(t, ctx)
	assert.False(t, span.IsRecording())
	span.End()

	assert.NoError(t, mgr.Shutdown(context.Background()))
}

func TestManager_MetricsEndpoint(t *testing.T) {
	mgr := NewManager(Config{Metrics: MetricsConfig{Enabled: true}})
	require.NoError(t, mgr.Initialize(context.Background()))
	defer mgr.Shutdown(context.Background())

	path, h, ok := mgr.MetricsHandler()
	require.True(t, ok)
	assert.Equal(t, DefaultMetricsPath, path)
	assert.NotNil(t, h)
}

func TestTracer_RecordsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := NewTracerWithExporter(TracingConfig{Enabled: true}, exporter)
	require.NoError(t, err)
	defer tracer.Shutdown(context.Background())

	_, span := tracer.Start(context.Background(), SpanAssistant)
	span.End()
	require.NoError(t, tracer.ForceFlush(context.Background()))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanAssistant, spans[0].Name)
}

func TestHTTPMiddleware_CapturesStatus(t *testing.T) {
	m, err := InitMetrics(MetricsConfig{Enabled: true})
	require.NoError(t, err)
	defer m.Shutdown(context.Background())

	h := HTTPMiddleware(nil, m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	body := scrape(t, m.Handler())
	assert.Contains(t, body, `status="418"`)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{Tracing: TracingConfig{Enabled: true, Exporter: "jaeger"}}
	cfg.SetDefaults()
	assert.Error(t, cfg.Validate())

	cfg = Config{Tracing: TracingConfig{Enabled: true, Exporter: "stdout"}}
	cfg.SetDefaults()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultServiceName, cfg.Tracing.ServiceName)
	assert.True(t, cfg.Tracing.IsInsecure())

	cfg = Config{Metrics: MetricsConfig{Enabled: true, Endpoint: "metrics"}}
	assert.Error(t, cfg.Validate())
}
