// Package registry implements the shared-instance registry of the container.
//
// A Registry caches one instance per name and resolves circular references
// by exposing instances before their construction completes:
//
//	a, err := reg.GetOrCreate(ctx, "a", func(ctx context.Context) (any, error) {
//	    raw := &A{}
//	    if err := registry.ExposeEarly(ctx, reg, "a", raw, hooks...); err != nil {
//	        return nil, err
//	    }
//	    b, err := reg.GetOrCreate(ctx, "b", newB) // newB may resolve "a" early
//	    ...
//	})
//
// Factories must pass the context they receive to nested registry calls: it
// carries ownership of the singleton lock, which is held for the whole
// outermost construction.
//
// An early reference handed to a collaborator during a construction that
// later fails stays with that collaborator. The registry does not track or
// invalidate it; the identity can be created again, yielding a different
// instance.
package registry
