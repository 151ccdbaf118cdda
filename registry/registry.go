package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/logger"
	"github.com/kbukum/ioc/util"
)

// Factory creates the instance of one identity. It receives a context that
// re-enters the singleton lock and must pass it to nested registry calls.
type Factory func(ctx context.Context) (any, error)

// Registry caches shared instances by name and resolves circular references
// through early exposure.
//
// Each identity is held in one slot: pending (an early factory waiting to be
// materialized), early (a reference handed out before construction finished)
// or finished. Finished reads are lock-free; every other transition happens
// under the singleton lock.
type Registry struct {
	id        string
	log       *logger.Logger
	listeners []CreationListener

	// singleton lock, re-entrant along a context chain
	mu       sync.Mutex
	owner    atomic.Pointer[lockOwner]
	ownerSeq atomic.Uint64

	slots sync.Map // string -> *slot

	inCreation sync.Map // string -> struct{}
	exclusions sync.Map // string -> struct{}
	destroying atomic.Bool

	// guarded by mu
	recording  bool
	suppressed []error

	bookMu       sync.Mutex
	registered   *nameSet
	disposables  *nameSet
	disposers    map[string]Disposer
	contained    map[string]*nameSet
	dependents   map[string]*nameSet
	dependencies map[string]*nameSet
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		id:           uuid.NewString(),
		registered:   newNameSet(),
		disposables:  newNameSet(),
		disposers:    make(map[string]Disposer),
		contained:    make(map[string]*nameSet),
		dependents:   make(map[string]*nameSet),
		dependencies: make(map[string]*nameSet),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.WithComponent("registry")
	}
	r.log = r.log.WithFields(map[string]interface{}{logger.FieldRegistry: r.id})
	return r
}

// ID returns the registry ID.
func (r *Registry) ID() string { return r.id }

// Get returns the finished instance of name. For a name in creation it falls
// back to early resolution. Get never constructs.
func (r *Registry) Get(ctx context.Context, name string) (any, bool, error) {
	if v, ok := r.finished(name); ok {
		return v, true, nil
	}
	if !r.IsActuallyInCreation(name) {
		return nil, false, nil
	}
	return r.ResolveEarly(ctx, name)
}

// GetOrCreate returns the finished instance of name, invoking factory to
// create it on first request.
//
// The singleton lock is held for the whole factory call, so a concurrent
// request for the same name blocks and then observes the finished value.
// A request for a name already in creation on the same context chain fails
// with CurrentlyInCreation unless the name is excluded from the check.
func (r *Registry) GetOrCreate(ctx context.Context, name string, factory Factory) (any, error) {
	if name == "" {
		return nil, errors.InvalidInput("name", "instance name must not be empty")
	}
	if v, ok := r.finished(name); ok {
		return v, nil
	}

	ctx, release := r.lock(ctx)
	defer release()

	if v, ok := r.finished(name); ok {
		return v, nil
	}
	if r.destroying.Load() {
		return nil, errors.CreationNotAllowed(name)
	}

	r.log.Debug("creating shared instance", logger.Fields(logger.FieldInstance, name))
	start := time.Now()

	value, err := r.create(ctx, name, factory)
	if err != nil {
		// The factory may have bound the name itself before failing.
		if v, ok := r.finished(name); ok {
			r.log.Debug("instance appeared during failed creation", logger.Fields(logger.FieldInstance, name))
			return v, nil
		}
		return nil, err
	}

	r.promote(name, value)
	r.log.Debug("instance created", logger.Fields(
		logger.FieldInstance, name,
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return value, nil
}

// discardTransient drops an early or pending slot left by a failed creation
// so a retry starts from a clean state. The caller holds the lock.
func (r *Registry) discardTransient(name string) {
	if s := r.load(name); s != nil && s.kind != slotFinished {
		r.slots.Delete(name)
		r.log.Debug("discarded early reference of failed creation", logger.Fields(logger.FieldInstance, name))
	}
}

func (r *Registry) create(ctx context.Context, name string, factory Factory) (value any, err error) {
	if err := r.beforeCreation(name); err != nil {
		return nil, err
	}

	recording := !r.recording
	if recording {
		r.recording = true
		r.suppressed = nil
	}
	var related []error
	defer func() {
		if recording {
			related = r.suppressed
			r.recording = false
			r.suppressed = nil
		}
		if err != nil {
			r.discardTransient(name)
		}
		r.afterCreation(name)
		if err != nil && recording {
			err = attachRelated(err, related)
		}
	}()

	for _, l := range r.listeners {
		ctx = l.BeforeCreation(ctx, name)
	}
	value, err = factory(ctx)
	if err == nil && value == nil {
		err = fmt.Errorf("factory for '%s' returned nil", name)
	}
	if err != nil {
		if _, ok := err.(*errors.AppError); !ok {
			err = errors.ConstructionFailed(name, err)
		}
	}
	for i := len(r.listeners) - 1; i >= 0; i-- {
		r.listeners[i].AfterCreation(ctx, name, err)
	}
	return value, err
}

func attachRelated(err error, related []error) error {
	appErr, ok := err.(*errors.AppError)
	if !ok {
		return err
	}
	for _, rel := range related {
		if rel != err {
			appErr.AddRelated(rel)
		}
	}
	return appErr
}

// promote stores value as the finished instance; any early or pending slot
// is replaced. Must be called with the singleton lock held.
func (r *Registry) promote(name string, value any) {
	if prev := r.load(name); prev != nil && prev.kind == slotEarly && !util.SameInstance(prev.value, value) {
		r.log.Debug("finished instance differs from early reference already handed out", logger.Fields(
			logger.FieldInstance, name,
			"early_type", util.TypeName(prev.value),
			"finished_type", util.TypeName(value),
		))
	}
	r.slots.Store(name, finishedSlot(value))

	r.bookMu.Lock()
	r.registered.add(name)
	r.bookMu.Unlock()
}

// RegisterSingleton binds an already constructed instance to name.
func (r *Registry) RegisterSingleton(ctx context.Context, name string, value any) error {
	if name == "" {
		return errors.InvalidInput("name", "instance name must not be empty")
	}
	if value == nil {
		return errors.InvalidInput("value", fmt.Sprintf("instance for '%s' must not be nil", name))
	}

	_, release := r.lock(ctx)
	defer release()

	if existing, ok := r.finished(name); ok {
		return errors.IdentityAlreadyBound(name, existing)
	}
	r.promote(name, value)
	return nil
}

// Remove drops every cache layer and the registration record of name.
// It is used to clean up after a failed construction so it can be retried.
func (r *Registry) Remove(ctx context.Context, name string) {
	_, release := r.lock(ctx)
	defer release()

	r.slots.Delete(name)

	r.bookMu.Lock()
	r.registered.remove(name)
	r.bookMu.Unlock()
}

// Contains reports whether name has a finished instance.
func (r *Registry) Contains(name string) bool {
	_, ok := r.finished(name)
	return ok
}

// Names returns the finished identities in registration order.
func (r *Registry) Names() []string {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	return r.registered.list()
}

// Count returns the number of finished identities.
func (r *Registry) Count() int {
	r.bookMu.Lock()
	defer r.bookMu.Unlock()
	return r.registered.len()
}
