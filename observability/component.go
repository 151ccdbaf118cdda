package observability

import (
	"context"
	"fmt"
	"sync"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/ioc/component"
)

// TracerComponent manages the lifecycle of the global tracer provider.
type TracerComponent struct {
	cfg TracerConfig

	mu sync.Mutex
	tp *sdktrace.TracerProvider
}

var (
	_ component.Component   = (*TracerComponent)(nil)
	_ component.Describable = (*TracerComponent)(nil)
)

// NewTracerComponent creates a tracer component for cfg.
func NewTracerComponent(cfg TracerConfig) *TracerComponent {
	return &TracerComponent{cfg: cfg}
}

// Name implements component.Component.
func (c *TracerComponent) Name() string { return "tracer" }

// Start installs the tracer provider.
func (c *TracerComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tp != nil {
		return nil
	}
	tp, err := InitTracer(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.tp = tp
	return nil
}

// Stop flushes pending spans and shuts the provider down.
func (c *TracerComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	tp := c.tp
	c.tp = nil
	c.mu.Unlock()
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}

// Health implements component.Component.
func (c *TracerComponent) Health(_ context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return providerHealth(c.Name(), c.tp != nil)
}

// Describe implements component.Describable.
func (c *TracerComponent) Describe() component.Description {
	return component.Description{
		Name:    "Tracer",
		Type:    "telemetry",
		Details: fmt.Sprintf("endpoint=%s sample_rate=%.2f", c.cfg.Endpoint, c.cfg.SampleRate),
	}
}

// MeterComponent manages the lifecycle of the global meter provider.
type MeterComponent struct {
	cfg MeterConfig

	mu sync.Mutex
	mp *sdkmetric.MeterProvider
}

var (
	_ component.Component   = (*MeterComponent)(nil)
	_ component.Describable = (*MeterComponent)(nil)
)

// NewMeterComponent creates a meter component for cfg.
func NewMeterComponent(cfg MeterConfig) *MeterComponent {
	return &MeterComponent{cfg: cfg}
}

// Name implements component.Component.
func (c *MeterComponent) Name() string { return "meter" }

// Start installs the meter provider.
func (c *MeterComponent) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mp != nil {
		return nil
	}
	mp, err := InitMeter(ctx, c.cfg)
	if err != nil {
		return err
	}
	c.mp = mp
	return nil
}

// Stop exports pending metrics and shuts the provider down.
func (c *MeterComponent) Stop(ctx context.Context) error {
	c.mu.Lock()
	mp := c.mp
	c.mp = nil
	c.mu.Unlock()
	if mp == nil {
		return nil
	}
	return mp.Shutdown(ctx)
}

// Health implements component.Component.
func (c *MeterComponent) Health(_ context.Context) component.Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return providerHealth(c.Name(), c.mp != nil)
}

// Describe implements component.Describable.
func (c *MeterComponent) Describe() component.Description {
	return component.Description{
		Name:    "Meter",
		Type:    "telemetry",
		Details: fmt.Sprintf("endpoint=%s interval=%s", c.cfg.Endpoint, c.cfg.Interval),
	}
}

func providerHealth(name string, running bool) component.Health {
	if !running {
		return component.Health{Name: name, Status: component.StatusDegraded, Message: "not started"}
	}
	return component.Health{Name: name, Status: component.StatusHealthy}
}
