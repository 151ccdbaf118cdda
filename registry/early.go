package registry

import (
	"context"
	"fmt"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
)

// RegisterEarlyFactory stores the factory producing the early reference of
// name. It may only be called while name is in creation. It is a no-op once
// name is finished or its early reference has been materialized; before that
// the last registered factory wins.
func (r *Registry) RegisterEarlyFactory(ctx context.Context, name string, f EarlyFactory) error {
	if f == nil {
		return errors.InvalidInput("factory", "early factory must not be nil")
	}
	if !r.IsActuallyInCreation(name) {
		return errors.InvalidInput("name", fmt.Sprintf("'%s' is not currently in creation", name))
	}

	_, release := r.lock(ctx)
	defer release()

	if s := r.load(name); s != nil && s.kind != slotPending {
		return nil
	}
	r.slots.Store(name, pendingSlot(f))
	return nil
}

// ResolveEarly returns the reference of a name in creation, materializing its
// early factory on first request. The factory is invoked at most once per
// creation cycle, so every request in the cycle receives the same value.
// Names that are neither finished nor in creation resolve to absent.
//
// Early references are only visible to the context that holds the registry
// lock. Any other caller blocks until the creation completes and then sees
// the finished instance, or absent when the creation failed.
//
// A failing early factory is consumed as well; the error is returned and
// later requests in the cycle resolve to absent.
func (r *Registry) ResolveEarly(ctx context.Context, name string) (any, bool, error) {
	if v, ok := r.finished(name); ok {
		return v, true, nil
	}
	if !r.IsActuallyInCreation(name) {
		return nil, false, nil
	}

	ctx, release := r.lock(ctx)
	defer release()

	s := r.load(name)
	if s == nil {
		return nil, false, nil
	}
	if s.kind == slotFinished {
		return s.value, true, nil
	}
	if !r.IsActuallyInCreation(name) {
		return nil, false, nil
	}
	if s.kind == slotEarly {
		return s.value, true, nil
	}

	r.slots.Delete(name)
	v, err := s.factory(ctx)
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, errors.ConstructionFailed(name, fmt.Errorf("early factory for '%s' returned nil", name))
	}
	r.slots.Store(name, earlySlot(v))
	r.log.Debug("returning early reference of instance in creation", logger.Fields(logger.FieldInstance, name))
	return v, true, nil
}

// EarlyValue returns the early reference of name if one was materialized.
// It never invokes a pending early factory and reports absent to callers
// that do not hold the registry lock.
func (r *Registry) EarlyValue(ctx context.Context, name string) (any, bool) {
	if !r.holds(ctx) {
		return nil, false
	}
	if s := r.load(name); s != nil && s.kind == slotEarly {
		return s.value, true
	}
	return nil, false
}

// EarlyExposureHook may substitute the early reference of an instance in
// creation, typically with a proxy. Returning raw means no substitution.
// It is called at most once per name and creation cycle.
type EarlyExposureHook interface {
	EarlyReference(ctx context.Context, raw any, name string) (any, error)
}

// HookFunc adapts a function to EarlyExposureHook.
type HookFunc func(ctx context.Context, raw any, name string) (any, error)

func (f HookFunc) EarlyReference(ctx context.Context, raw any, name string) (any, error) {
	return f(ctx, raw, name)
}

// EarlyRegistrar accepts early factories.
type EarlyRegistrar interface {
	RegisterEarlyFactory(ctx context.Context, name string, f EarlyFactory) error
}

// ExposeEarly registers an early factory for raw that passes it through
// hooks in order, each receiving the previous hook's result.
func ExposeEarly(ctx context.Context, r EarlyRegistrar, name string, raw any, hooks ...EarlyExposureHook) error {
	return r.RegisterEarlyFactory(ctx, name, func(ctx context.Context) (any, error) {
		exposed := raw
		for _, h := range hooks {
			v, err := h.EarlyReference(ctx, exposed, name)
			if err != nil {
				return nil, err
			}
			exposed = v
		}
		return exposed, nil
	})
}
