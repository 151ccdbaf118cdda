package registry

import (
	"context"

	"github.com/kbukum/ioc/logger"
)

// CreationListener is notified around every factory invocation of GetOrCreate.
// The context returned by BeforeCreation is the one passed to the factory and
// to AfterCreation.
type CreationListener interface {
	BeforeCreation(ctx context.Context, name string) context.Context
	AfterCreation(ctx context.Context, name string, err error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithCreationListener adds a listener called around every construction.
// Listeners run in the order they were added.
func WithCreationListener(l CreationListener) Option {
	return func(r *Registry) {
		if l != nil {
			r.listeners = append(r.listeners, l)
		}
	}
}

// WithID overrides the generated registry ID.
func WithID(id string) Option {
	return func(r *Registry) {
		if id != "" {
			r.id = id
		}
	}
}
