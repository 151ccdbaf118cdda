package di

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/ioc/errors"
)

// BeanGetter is implemented by Container and Deps.
type BeanGetter interface {
	GetBean(ctx context.Context, name string) (any, error)
}

// Resolve resolves an instance with type safety, returns error on failure.
//
// Example:
//
//	repo, err := di.Resolve[*Repository](ctx, c, "repository")
//	if err != nil {
//	    return fmt.Errorf("failed to get repository: %w", err)
//	}
func Resolve[T any](ctx context.Context, g BeanGetter, name string) (T, error) {
	var zero T
	instance, err := g.GetBean(ctx, name)
	if err != nil {
		return zero, err
	}
	result, ok := instance.(T)
	if !ok {
		return zero, errors.InvalidInput("type",
			fmt.Sprintf("instance '%s' is %T, expected %s", name, instance, reflect.TypeFor[T]())).
			WithDetail("instance", name)
	}
	return result, nil
}

// MustResolve resolves an instance with type safety, panics on error.
func MustResolve[T any](ctx context.Context, g BeanGetter, name string) T {
	result, err := Resolve[T](ctx, g, name)
	if err != nil {
		panic(fmt.Sprintf("di: failed to resolve %s: %v", name, err))
	}
	return result
}

// TryResolve resolves an instance, returns zero value and false if it is
// missing, fails or has another type. Use this when a dependency is optional.
//
// Example:
//
//	if metrics, ok := di.TryResolve[MetricsClient](ctx, deps, "metrics"); ok {
//	    s.metrics = metrics
//	}
func TryResolve[T any](ctx context.Context, g BeanGetter, name string) (T, bool) {
	result, err := Resolve[T](ctx, g, name)
	if err != nil {
		var zero T
		return zero, false
	}
	return result, true
}
