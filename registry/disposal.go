package registry

import (
	"context"
	"fmt"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
)

// Disposer releases the resources of an instance at teardown.
type Disposer interface {
	Dispose(ctx context.Context) error
}

// DisposerFunc adapts a function to Disposer.
type DisposerFunc func(ctx context.Context) error

func (f DisposerFunc) Dispose(ctx context.Context) error { return f(ctx) }

// RegisterDisposable registers the disposer of name. Disposers run in reverse
// registration order at DestroyAll.
func (r *Registry) RegisterDisposable(name string, d Disposer) {
	if d == nil {
		return
	}
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	r.disposables.add(name)
	r.disposers[name] = d
}

// RegisterDependency records that dependent depends on name, so dependent is
// destroyed before name.
func (r *Registry) RegisterDependency(name, dependent string) {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	r.addDependency(name, dependent)
}

func (r *Registry) addDependency(name, dependent string) {
	set, ok := r.dependents[name]
	if !ok {
		set = newNameSet()
		r.dependents[name] = set
	}
	if !set.add(dependent) {
		return
	}
	deps, ok := r.dependencies[dependent]
	if !ok {
		deps = newNameSet()
		r.dependencies[dependent] = deps
	}
	deps.add(name)
}

// RegisterContainment records that container holds contained as an inner
// instance. The container is destroyed first and takes its contained
// instances down with it.
func (r *Registry) RegisterContainment(contained, container string) {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	set, ok := r.contained[container]
	if !ok {
		set = newNameSet()
		r.contained[container] = set
	}
	if !set.add(contained) {
		return
	}
	r.addDependency(contained, container)
}

// Dependents returns the names that depend on name.
func (r *Registry) Dependents(name string) []string {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	if set, ok := r.dependents[name]; ok {
		return set.list()
	}
	return []string{}
}

// Dependencies returns the names name depends on.
func (r *Registry) Dependencies(name string) []string {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	if set, ok := r.dependencies[name]; ok {
		return set.list()
	}
	return []string{}
}

// HasDependents reports whether anything depends on name.
func (r *Registry) HasDependents(name string) bool {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	set, ok := r.dependents[name]
	return ok && set.len() > 0
}

// IsDependent reports whether dependent depends on name, directly or
// transitively.
func (r *Registry) IsDependent(name, dependent string) bool {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	return r.isDependent(name, dependent, map[string]struct{}{})
}

func (r *Registry) isDependent(name, dependent string, seen map[string]struct{}) bool {
	if _, ok := seen[name]; ok {
		return false
	}
	set, ok := r.dependents[name]
	if !ok {
		return false
	}
	if set.has(dependent) {
		return true
	}
	seen[name] = struct{}{}
	for _, transitive := range set.names {
		if r.isDependent(transitive, dependent, seen) {
			return true
		}
	}
	return false
}

// DestroyAll disposes every registered instance in reverse registration
// order, dependents first, and clears the registry. Requests to create
// instances fail with CreationNotAllowed while it runs. Disposal failures are
// logged and never returned.
func (r *Registry) DestroyAll(ctx context.Context) {
	r.log.Debug("destroying instances")

	_ = r.WithLock(ctx, func(context.Context) error {
		r.destroying.Store(true)
		return nil
	})

	r.bookMu.Lock()
	names := r.disposables.list()
	r.bookMu.Unlock()

	for i := len(names) - 1; i >= 0; i-- {
		r.DestroySingleton(ctx, names[i])
	}

	r.bookMu.Lock()
	r.contained = make(map[string]*nameSet)
	r.dependents = make(map[string]*nameSet)
	r.dependencies = make(map[string]*nameSet)
	r.bookMu.Unlock()

	_ = r.WithLock(ctx, func(context.Context) error {
		r.slots.Range(func(k, _ any) bool {
			r.slots.Delete(k)
			return true
		})
		r.bookMu.Lock()
		r.registered.clear()
		r.bookMu.Unlock()
		r.destroying.Store(false)
		return nil
	})
}

// IsDestroying reports whether DestroyAll is running.
func (r *Registry) IsDestroying() bool {
	return r.destroying.Load()
}

// DestroySingleton removes name and runs its disposer, destroying the
// instances that depend on it first and the instances it contains after.
func (r *Registry) DestroySingleton(ctx context.Context, name string) {
	r.Remove(ctx, name)

	r.bookMu.Lock()
	d := r.disposers[name]
	delete(r.disposers, name)
	r.disposables.remove(name)
	r.bookMu.Unlock()

	r.destroyInstance(ctx, name, d)
}

func (r *Registry) destroyInstance(ctx context.Context, name string, d Disposer) {
	r.bookMu.Lock()
	var dependents []string
	if set, ok := r.dependents[name]; ok {
		dependents = set.list()
		delete(r.dependents, name)
	}
	r.bookMu.Unlock()

	for _, dep := range dependents {
		r.DestroySingleton(ctx, dep)
	}

	if d != nil {
		if err := dispose(ctx, d); err != nil {
			r.log.Warn("disposal failed", logger.Fields(
				logger.FieldInstance, name,
				logger.FieldError, errors.DisposalFailed(name, err).Error(),
			))
		}
	}

	r.bookMu.Lock()
	var contained []string
	if set, ok := r.contained[name]; ok {
		contained = set.list()
		delete(r.contained, name)
	}
	r.bookMu.Unlock()

	for _, c := range contained {
		r.DestroySingleton(ctx, c)
	}

	r.bookMu.Lock()
	for key, set := range r.dependents {
		set.remove(name)
		if set.len() == 0 {
			delete(r.dependents, key)
		}
	}
	delete(r.dependencies, name)
	r.bookMu.Unlock()
}

func dispose(ctx context.Context, d Disposer) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return d.Dispose(ctx)
}
