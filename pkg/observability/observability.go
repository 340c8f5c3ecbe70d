// Package observability provides correlation IDs, span tracing, and
// counter/gauge/histogram metrics for the engine, built on top of
// go.opentelemetry.io/otel. Unlike a collector-backed deployment, every
// exporter here is in-process: spans and metrics are held in memory and
// read back directly, so the engine never depends on a live OTLP
// endpoint to run or to be observed.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Config configures a Provider. There is no endpoint or credential
// field: exporters are always in-process.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// DefaultConfig returns reasonable defaults for local and test use.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "msez-core",
		ServiceVersion: "0.1.0",
		Environment:    "development",
	}
}

// Provider owns the tracer and meter providers plus the in-memory
// instruments layered on top of them.
type Provider struct {
	config *Config
	logger *slog.Logger

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metricReader   *sdkmetric.ManualReader
	recorder       *spanRecorder

	tracer trace.Tracer
	meter  metric.Meter

	health *HealthRegistry

	instrMu    sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

// New builds a Provider with in-process tracing and metrics wired up.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Provider{
		config:     config,
		logger:     slog.Default().With("component", "observability"),
		recorder:   newSpanRecorder(),
		health:     NewHealthRegistry(),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
			semconv.DeploymentEnvironment(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("building resource: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSyncer(p.recorder),
	)
	otel.SetTracerProvider(p.tracerProvider)

	p.metricReader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(p.metricReader),
	)
	otel.SetMeterProvider(p.meterProvider)

	p.tracer = p.tracerProvider.Tracer("msez-core",
		trace.WithInstrumentationVersion(config.ServiceVersion),
	)
	p.meter = p.meterProvider.Meter("msez-core",
		metric.WithInstrumentationVersion(config.ServiceVersion),
	)

	p.logger.InfoContext(ctx, "observability initialized",
		"service", config.ServiceName,
		"environment", config.Environment,
	)

	return p, nil
}

// Shutdown flushes and releases the underlying providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down tracer provider: %w", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutting down meter provider: %w", err)
		}
	}
	return nil
}

// Tracer returns the configured OTel tracer.
func (p *Provider) Tracer() trace.Tracer {
	if p.tracer == nil {
		return otel.Tracer("msez-core")
	}
	return p.tracer
}

// Meter returns the configured OTel meter.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter("msez-core")
	}
	return p.meter
}

// Spans returns every span recorded so far, in completion order.
func (p *Provider) Spans() []Span {
	return p.recorder.Spans()
}

// CollectMetrics pulls the current state of every OTel metric instrument
// registered against this provider's meter. It never touches the
// network: the manual reader is satisfied entirely in-process.
func (p *Provider) CollectMetrics(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if p.metricReader == nil {
		return rm, nil
	}
	if err := p.metricReader.Collect(ctx, &rm); err != nil {
		return rm, fmt.Errorf("collecting metrics: %w", err)
	}
	return rm, nil
}

// Health returns the provider's health probe registry.
func (p *Provider) Health() *HealthRegistry {
	return p.health
}

// Counter returns the named counter, creating it on first use.
func (p *Provider) Counter(name string) *Counter {
	p.instrMu.Lock()
	defer p.instrMu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c := newCounter(name)
	p.counters[name] = c
	return c
}

// Gauge returns the named gauge, creating it on first use.
func (p *Provider) Gauge(name string) *Gauge {
	p.instrMu.Lock()
	defer p.instrMu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	g := newGauge(name)
	p.gauges[name] = g
	return g
}

// HistogramNamed returns the named histogram, creating it with the
// given sample window on first use. A window of 0 uses the default.
func (p *Provider) HistogramNamed(name string, window int) *Histogram {
	p.instrMu.Lock()
	defer p.instrMu.Unlock()
	if h, ok := p.histograms[name]; ok {
		return h
	}
	h := newHistogram(name, window)
	p.histograms[name] = h
	return h
}

