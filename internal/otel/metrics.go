package otel

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/telehealth/core/internal/model"
)

// MetricsConfig holds configuration for the OpenTelemetry metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active. Default: false (no-op).
	Enabled bool

	// ServiceName is the name of the service for metric attribution.
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// ExporterType specifies which exporter to use.
	ExporterType ExporterType

	// OTLPEndpoint is the endpoint for OTLP exporters (e.g., "localhost:4317").
	OTLPEndpoint string

	// OTLPInsecure disables TLS for OTLP connections.
	OTLPInsecure bool

	// Attributes are additional attributes to add to all metrics.
	Attributes map[string]string
}

// DefaultMetricsConfig returns a default configuration with metrics disabled.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Enabled:      false,
		ServiceName:  "telehealth-core",
		ExporterType: ExporterNone,
	}
}

// Metrics wraps OpenTelemetry metrics with ingestion-specific helpers.
// It complements the Prometheus exposition in internal/metrics with
// push-based OTLP export for deployments that collect that way.
type Metrics struct {
	config        *MetricsConfig
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	shutdown      func(context.Context) error
	mu            sync.RWMutex

	messageLatency    metric.Float64Histogram
	errorCounter      metric.Int64Counter
	activeConnections metric.Int64UpDownCounter
	busReconnects     metric.Int64Counter
	emitterDrops      metric.Int64Counter
}

// NewMetrics creates a new Metrics instance with the given configuration.
func NewMetrics(ctx context.Context, cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil {
		cfg = DefaultMetricsConfig()
	}

	m := &Metrics{
		config: cfg,
	}

	if !cfg.Enabled || cfg.ExporterType == ExporterNone {
		m.meterProvider = sdkmetric.NewMeterProvider()
		m.meter = m.meterProvider.Meter(cfg.ServiceName)
		m.shutdown = func(context.Context) error { return nil }
		return m, nil
	}

	exporter, err := m.createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics exporter: %w", err)
	}

	res, err := m.createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics resource: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)

	m.meterProvider = mp
	m.meter = mp.Meter(cfg.ServiceName)
	m.shutdown = mp.Shutdown

	if err := m.registerInstruments(); err != nil {
		return nil, fmt.Errorf("failed to register metric instruments: %w", err)
	}

	return m, nil
}

// createExporter creates the appropriate metrics exporter based on configuration.
func (m *Metrics) createExporter(ctx context.Context, cfg *MetricsConfig) (sdkmetric.Exporter, error) {
	switch cfg.ExporterType {
	case ExporterStdout:
		return stdoutmetric.New()

	case ExporterOTLPGRPC:
		opts := []otlpmetricgrpc.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		return otlpmetricgrpc.New(ctx, opts...)

	case ExporterOTLPHTTP:
		opts := []otlpmetrichttp.Option{}
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		return otlpmetrichttp.New(ctx, opts...)

	default:
		return nil, fmt.Errorf("unknown exporter type: %s", cfg.ExporterType)
	}
}

// createResource creates the OpenTelemetry resource with service information.
func (m *Metrics) createResource(cfg *MetricsConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
	}

	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	for k, v := range cfg.Attributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("", attrs...),
	)
}

// registerInstruments creates and registers all metric instruments.
func (m *Metrics) registerInstruments() error {
	var err error

	m.messageLatency, err = m.meter.Float64Histogram(
		"telehealth.message.latency",
		metric.WithDescription("End-to-end processing latency of one inbound bus message"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return fmt.Errorf("failed to create message latency histogram: %w", err)
	}

	m.errorCounter, err = m.meter.Int64Counter(
		"telehealth.errors",
		metric.WithDescription("Count of stage errors by step"),
	)
	if err != nil {
		return fmt.Errorf("failed to create error counter: %w", err)
	}

	m.activeConnections, err = m.meter.Int64UpDownCounter(
		"telehealth.fanout.connections",
		metric.WithDescription("Number of live dashboard WebSocket connections"),
	)
	if err != nil {
		return fmt.Errorf("failed to create connections counter: %w", err)
	}

	m.busReconnects, err = m.meter.Int64Counter(
		"telehealth.bus.reconnects",
		metric.WithDescription("Count of broker reconnections"),
	)
	if err != nil {
		return fmt.Errorf("failed to create reconnect counter: %w", err)
	}

	m.emitterDrops, err = m.meter.Int64Counter(
		"telehealth.emitter.drops",
		metric.WithDescription("Flow events dropped under queue overflow"),
	)
	if err != nil {
		return fmt.Errorf("failed to create emitter drop counter: %w", err)
	}

	return nil
}

// RecordMessageLatency records the full processing latency of one
// inbound message, labeled by family and terminal outcome.
func (m *Metrics) RecordMessageLatency(ctx context.Context, family model.DeviceFamily, outcome string, latencyMs float64) {
	if m.messageLatency == nil {
		return
	}

	m.messageLatency.Record(ctx, latencyMs, metric.WithAttributes(
		attribute.String("device_family", string(family)),
		attribute.String("outcome", outcome),
	))
}

// RecordStageError records an error at the given processing step.
func (m *Metrics) RecordStageError(ctx context.Context, family model.DeviceFamily, step model.FlowStep) {
	if m.errorCounter == nil {
		return
	}

	m.errorCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("device_family", string(family)),
		attribute.String("step", string(step)),
	))
}

// IncrementConnections increments the fanout connections counter.
func (m *Metrics) IncrementConnections(ctx context.Context) {
	if m.activeConnections == nil {
		return
	}

	m.activeConnections.Add(ctx, 1)
}

// DecrementConnections decrements the fanout connections counter.
func (m *Metrics) DecrementConnections(ctx context.Context) {
	if m.activeConnections == nil {
		return
	}

	m.activeConnections.Add(ctx, -1)
}

// RecordBusReconnect increments the broker reconnect counter.
func (m *Metrics) RecordBusReconnect(ctx context.Context) {
	if m.busReconnects == nil {
		return
	}

	m.busReconnects.Add(ctx, 1)
}

// RecordEmitterDrop increments the emitter drop counter.
func (m *Metrics) RecordEmitterDrop(ctx context.Context) {
	if m.emitterDrops == nil {
		return
	}

	m.emitterDrops.Add(ctx, 1)
}

// Shutdown gracefully shuts down the metrics provider, flushing any pending metrics.
func (m *Metrics) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shutdown != nil {
		return m.shutdown(ctx)
	}
	return nil
}

// Enabled returns whether metrics collection is enabled.
func (m *Metrics) Enabled() bool {
	return m.config.Enabled && m.config.ExporterType != ExporterNone
}

// MeterProvider returns the underlying meter provider.
func (m *Metrics) MeterProvider() *sdkmetric.MeterProvider {
	return m.meterProvider
}

// NoopMetrics returns a metrics instance that does nothing (for testing or when disabled).
func NoopMetrics() *Metrics {
	cfg := DefaultMetricsConfig()
	mp := sdkmetric.NewMeterProvider()
	return &Metrics{
		config:        cfg,
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName),
		shutdown:      func(context.Context) error { return nil },
	}
}
