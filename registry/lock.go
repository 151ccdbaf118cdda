package registry

import (
	"context"
)

type ownerKey struct{ r *Registry }

type lockOwner struct{ seq uint64 }

// lock acquires the singleton lock unless ctx already carries the current
// ownership of this registry. The returned context carries ownership and must
// be passed to nested registry calls made while the lock is held.
func (r *Registry) lock(ctx context.Context) (context.Context, func()) {
	if r.holds(ctx) {
		return ctx, func() {}
	}
	r.mu.Lock()
	o := &lockOwner{seq: r.ownerSeq.Add(1)}
	r.owner.Store(o)
	return context.WithValue(ctx, ownerKey{r}, o), func() {
		r.owner.Store(nil)
		r.mu.Unlock()
	}
}

func (r *Registry) holds(ctx context.Context) bool {
	o, ok := ctx.Value(ownerKey{r}).(*lockOwner)
	return ok && o != nil && r.owner.Load() == o
}

// WithLock runs fn while holding the singleton lock. fn receives a context
// that re-enters the lock, so it may call back into the registry.
func (r *Registry) WithLock(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, release := r.lock(ctx)
	defer release()
	return fn(ctx)
}
