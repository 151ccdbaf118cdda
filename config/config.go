package config

import (
	"time"

	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/validation"
)

// Config is the configuration of a container application.
type Config struct {
	Name        string          `yaml:"name" mapstructure:"name" validate:"required,identity"`
	Environment string          `yaml:"environment" mapstructure:"environment" validate:"oneof=development test staging production"`
	Version     string          `yaml:"version" mapstructure:"version"`
	Logging     logger.Config   `yaml:"logging" mapstructure:"logging"`
	Registry    RegistryConfig  `yaml:"registry" mapstructure:"registry"`
	Proxy       ProxyConfig     `yaml:"proxy" mapstructure:"proxy"`
	Telemetry   TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`
}

// RegistryConfig controls circular-reference handling.
type RegistryConfig struct {
	// AllowCircularReferences enables early exposure of instances in creation.
	AllowCircularReferences bool `yaml:"allow_circular_references" mapstructure:"allow_circular_references"`
	// AllowRawInjectionDespiteWrapping keeps a construction alive when
	// collaborators received the raw early instance and initialization later
	// wrapped it.
	AllowRawInjectionDespiteWrapping bool `yaml:"allow_raw_injection_despite_wrapping" mapstructure:"allow_raw_injection_despite_wrapping"`
	// PreInstantiate creates every non-lazy instance when the container starts.
	PreInstantiate bool `yaml:"pre_instantiate" mapstructure:"pre_instantiate"`
}

// ProxyConfig controls the auto-proxy creator.
type ProxyConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// ApplyCommonInterceptorsFirst places common interceptors ahead of
	// instance-specific advisors.
	ApplyCommonInterceptorsFirst bool `yaml:"apply_common_interceptors_first" mapstructure:"apply_common_interceptors_first"`
	// CommonInterceptors names container instances applied to every proxy.
	CommonInterceptors []string `yaml:"common_interceptors" mapstructure:"common_interceptors"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`
}

// TracingConfig configures the trace exporter.
type TracingConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure   bool    `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures the metric exporter.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint string        `yaml:"endpoint" mapstructure:"endpoint" validate:"omitempty,hostname_port"`
	Insecure bool          `yaml:"insecure" mapstructure:"insecure"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval" validate:"gte=0"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	cfg := Config{
		Environment: "development",
		Registry: RegistryConfig{
			AllowCircularReferences: true,
			PreInstantiate:          true,
		},
		Proxy: ProxyConfig{
			Enabled:                      true,
			ApplyCommonInterceptorsFirst: true,
		},
		Telemetry: TelemetryConfig{
			Tracing: TracingConfig{
				Endpoint:   "localhost:4318",
				Insecure:   true,
				SampleRate: 1.0,
			},
			Metrics: MetricsConfig{
				Endpoint: "localhost:4318",
				Insecure: true,
				Interval: 15 * time.Second,
			},
		},
	}
	cfg.Logging.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty string and duration fields. Booleans are left
// alone; start from Default to get their defaults.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
	if c.Environment == "development" && c.Logging.Level == "info" {
		c.Logging.Level = "debug"
	}
	if c.Telemetry.Tracing.Endpoint == "" {
		c.Telemetry.Tracing.Endpoint = "localhost:4318"
	}
	if c.Telemetry.Metrics.Endpoint == "" {
		c.Telemetry.Metrics.Endpoint = c.Telemetry.Tracing.Endpoint
	}
	if c.Telemetry.Metrics.Interval == 0 {
		c.Telemetry.Metrics.Interval = 15 * time.Second
	}
}

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	v := validation.New()
	v.Merge("config", validation.Validate(c))
	v.Unique("proxy.common_interceptors", c.Proxy.CommonInterceptors)
	for _, name := range c.Proxy.CommonInterceptors {
		v.Identity("proxy.common_interceptors", name)
	}
	v.Check(!c.Telemetry.Tracing.Enabled || c.Telemetry.Tracing.Endpoint != "",
		"telemetry.tracing.endpoint", "is required when tracing is enabled")
	v.Check(!c.Telemetry.Metrics.Enabled || c.Telemetry.Metrics.Endpoint != "",
		"telemetry.metrics.endpoint", "is required when metrics are enabled")
	v.Check(len(c.Proxy.CommonInterceptors) == 0 || c.Proxy.Enabled,
		"proxy.common_interceptors", "requires proxy.enabled")
	return v.Validate()
}
