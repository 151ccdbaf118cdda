package bootstrap

import (
	"time"

	"github.com/kbukum/ioc/aop"
	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/registry"
)

// Option configures the App during creation.
type Option func(*appOptions)

// appOptions collects all option values before applying to App.
type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	registryOpts    []registry.Option
	creatorOpts     []aop.CreatorOption
}

// resolveOptions applies all options and returns the collected values.
func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is auto-initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithRegistryOptions passes extra options to the instance registry.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(o *appOptions) {
		o.registryOpts = append(o.registryOpts, opts...)
	}
}

// WithCreatorOptions passes extra options to the auto-proxy creator. They
// are ignored when proxying is disabled in the config.
func WithCreatorOptions(opts ...aop.CreatorOption) Option {
	return func(o *appOptions) {
		o.creatorOpts = append(o.creatorOpts, opts...)
	}
}
