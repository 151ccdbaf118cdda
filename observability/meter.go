package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/ioc/config"
	"github.com/kbukum/ioc/logger"
)

// Instrument names.
const (
	MetricCreationTotal    = "ioc.creation.total"
	MetricCreationDuration = "ioc.creation.duration"
	MetricCreationActive   = "ioc.creation.active"
	MetricErrorTotal       = "ioc.error.total"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// MeterConfigFrom builds a MeterConfig from the application configuration.
func MeterConfigFrom(cfg *config.Config) MeterConfig {
	return MeterConfig{
		ServiceName:    cfg.Name,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Environment,
		Endpoint:       cfg.Telemetry.Metrics.Endpoint,
		Insecure:       cfg.Telemetry.Metrics.Insecure,
		Interval:       cfg.Telemetry.Metrics.Interval,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, cfg MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if cfg.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(cfg.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		logger.FieldService, cfg.ServiceName,
		"endpoint", cfg.Endpoint,
		"interval", cfg.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the instruments recorded around instance construction.
type Metrics struct {
	creationTotal    metric.Int64Counter
	creationDuration metric.Float64Histogram
	creationActive   metric.Int64UpDownCounter
	errorTotal       metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	creationTotal, err := meter.Int64Counter(MetricCreationTotal,
		metric.WithDescription("Total number of instance constructions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricCreationTotal, err)
	}

	creationDuration, err := meter.Float64Histogram(MetricCreationDuration,
		metric.WithDescription("Duration of instance constructions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s histogram: %w", MetricCreationDuration, err)
	}

	creationActive, err := meter.Int64UpDownCounter(MetricCreationActive,
		metric.WithDescription("Number of constructions currently in progress"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s gauge: %w", MetricCreationActive, err)
	}

	errorTotal, err := meter.Int64Counter(MetricErrorTotal,
		metric.WithDescription("Total construction errors by code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating %s counter: %w", MetricErrorTotal, err)
	}

	return &Metrics{
		creationTotal:    creationTotal,
		creationDuration: creationDuration,
		creationActive:   creationActive,
		errorTotal:       errorTotal,
	}, nil
}

// RecordCreationStart increments the in-progress construction count.
func (m *Metrics) RecordCreationStart(ctx context.Context) {
	m.creationActive.Add(ctx, 1)
}

// RecordCreationEnd decrements in-progress constructions and records the
// completed one.
func (m *Metrics) RecordCreationEnd(ctx context.Context, instance, status string, duration time.Duration) {
	m.creationActive.Add(ctx, -1)
	m.creationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrInstance, instance),
		attribute.String(AttrStatus, status),
	))
	m.creationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrInstance, instance),
	))
}

// RecordError records a construction error by code and instance.
func (m *Metrics) RecordError(ctx context.Context, code, instance string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrErrorCode, code),
		attribute.String(AttrInstance, instance),
	))
}
