package observability

import (
	"context"
	"errors"
	"net/http"
)

// Manager owns the tracer and metrics for a process.
type Manager struct {
	config  Config
	tracer  *Tracer
	metrics *Metrics
}

// NewManager creates a Manager. Call Initialize before use.
func NewManager(cfg Config) *Manager {
	cfg.SetDefaults()
	return &Manager{config: cfg}
}

// Initialize creates the configured exporters.
func (m *Manager) Initialize(ctx context.Context) error {
	tracer, err := NewTracer(ctx, m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracer = tracer

	metrics, err := InitMetrics(m.config.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	return nil
}

// Tracer returns the tracer, nil when tracing is disabled.
func (m *Manager) Tracer() *Tracer {
	return m.tracer
}

// Recorder returns the metrics recorder, a no-op when metrics are disabled.
func (m *Manager) Recorder() Recorder {
	if m.metrics == nil {
		return NoopRecorder{}
	}
	return m.metrics
}

// MetricsHandler returns the Prometheus handler and the path it should be
// mounted on. ok is false when metrics are disabled.
func (m *Manager) MetricsHandler() (path string, h http.Handler, ok bool) {
	if m.metrics == nil {
		return "", nil, false
	}
	return m.config.Metrics.Endpoint, m.metrics.Handler(), true
}

// Shutdown flushes exporters.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error
	if err := m.tracer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if m.metrics != nil {
		if err := m.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
