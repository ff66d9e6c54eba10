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

	"offload/internal/domain/agent/background"
)

// MetricsConfig configures the metrics collector
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// MetricsCollector records registry and orchestrator metrics. A collector
// built with metrics disabled accepts every call and records nothing.
type MetricsCollector struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	tasksRegistered metric.Int64Counter
	tasksResolved   metric.Int64Counter
	taskDuration    metric.Float64Histogram
	waitDuration    metric.Float64Histogram
	waitResolved    metric.Int64Counter
	invocations     metric.Int64Counter
	notifications   metric.Int64Counter
	iterationLimits metric.Int64Counter
}

// NewMetricsCollector creates a new metrics collector backed by its own
// Prometheus registry.
func NewMetricsCollector(config MetricsConfig) (*MetricsCollector, error) {
	if !config.Enabled {
		return &MetricsCollector{}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter("offload")

	m := &MetricsCollector{registry: registry, provider: provider}
	if m.tasksRegistered, err = meter.Int64Counter(
		"offload.tasks.registered",
		metric.WithDescription("Background tasks registered"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tasks_registered counter: %w", err)
	}
	if m.tasksResolved, err = meter.Int64Counter(
		"offload.tasks.resolved",
		metric.WithDescription("Background tasks that reached a terminal state"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create tasks_resolved counter: %w", err)
	}
	if m.taskDuration, err = meter.Float64Histogram(
		"offload.task.duration",
		metric.WithDescription("Background task lifetime in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create task_duration histogram: %w", err)
	}
	if m.waitDuration, err = meter.Float64Histogram(
		"offload.wait.duration",
		metric.WithDescription("Time spent blocked in registry waits in seconds"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("failed to create wait_duration histogram: %w", err)
	}
	if m.waitResolved, err = meter.Int64Counter(
		"offload.wait.resolved",
		metric.WithDescription("Tasks resolved while a wait was blocked"),
		metric.WithUnit("{task}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create wait_resolved counter: %w", err)
	}
	if m.invocations, err = meter.Int64Counter(
		"offload.reentry.invocations",
		metric.WithDescription("Primary loop invocations made by the orchestrator"),
		metric.WithUnit("{invocation}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create invocations counter: %w", err)
	}
	if m.notifications, err = meter.Int64Counter(
		"offload.reentry.notifications",
		metric.WithDescription("Completion notifications injected into the conversation"),
		metric.WithUnit("{notification}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create notifications counter: %w", err)
	}
	if m.iterationLimits, err = meter.Int64Counter(
		"offload.reentry.iteration_limit",
		metric.WithDescription("Cycles that stopped at the iteration bound"),
		metric.WithUnit("{cycle}"),
	); err != nil {
		return nil, fmt.Errorf("failed to create iteration_limit counter: %w", err)
	}
	return m, nil
}

// Handler serves the collector's metrics in Prometheus text format.
func (m *MetricsCollector) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsCollector) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// TaskRegistered implements background.Metrics.
func (m *MetricsCollector) TaskRegistered(kind string) {
	if m == nil || m.tasksRegistered == nil {
		return
	}
	m.tasksRegistered.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// TaskResolved implements background.Metrics.
func (m *MetricsCollector) TaskResolved(kind string, status background.Status, elapsed time.Duration) {
	if m == nil || m.tasksResolved == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("status", string(status)),
	)
	m.tasksResolved.Add(context.Background(), 1, attrs)
	m.taskDuration.Record(context.Background(), elapsed.Seconds(), attrs)
}

// WaitObserved implements background.Metrics.
func (m *MetricsCollector) WaitObserved(scope string, resolved int, elapsed time.Duration) {
	if m == nil || m.waitDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("scope", scope))
	m.waitDuration.Record(context.Background(), elapsed.Seconds(), attrs)
	if resolved > 0 {
		m.waitResolved.Add(context.Background(), int64(resolved), attrs)
	}
}

// Invocation records one primary loop invocation.
func (m *MetricsCollector) Invocation(mode string) {
	if m == nil || m.invocations == nil {
		return
	}
	m.invocations.Add(context.Background(), 1, metric.WithAttributes(attribute.String("mode", mode)))
}

// NotificationInjected records a notification covering tasks completions.
func (m *MetricsCollector) NotificationInjected(tasks int) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("tasks", tasks)))
}

// IterationLimitReached records a cycle stopped at the bound.
func (m *MetricsCollector) IterationLimitReached() {
	if m == nil || m.iterationLimits == nil {
		return
	}
	m.iterationLimits.Add(context.Background(), 1)
}

var _ background.Metrics = (*MetricsCollector)(nil)
