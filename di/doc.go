// Package di populates managed instances on top of the registry package.
//
// A Definition says how to instantiate, populate, initialize and destroy one
// named instance. The Container creates instances on first request, or all
// at once through PreInstantiate, and resolves circular references between
// them by exposing instances early:
//
//	c := di.New()
//	_ = c.Register(di.Define("a", NewA, func(ctx context.Context, a *A, deps di.Deps) error {
//	    b, err := di.Resolve[*B](ctx, deps, "b")
//	    a.b = b
//	    return err
//	}))
//	_ = c.Register(di.Define("b", NewB, func(ctx context.Context, b *B, deps di.Deps) error {
//	    a, err := di.Resolve[*A](ctx, deps, "a")
//	    b.a = a
//	    return err
//	}))
//	a := di.MustResolve[*A](ctx, c, "a")
//
// Post-processors hook into creation. An aop.AutoProxyCreator added with
// AddPostProcessor wraps advised instances, including instances handed out
// early.
//
// The container is a component.Component: Start pre-instantiates and Stop
// destroys every instance, dependents first.
package di
