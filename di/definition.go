package di

import (
	"context"
	"reflect"
)

// Role classifies a definition.
type Role int

const (
	// RoleApplication is an ordinary managed instance.
	RoleApplication Role = iota
	// RoleInfrastructure marks instances that support the container itself.
	// Post-processors and early exposure hooks are not applied to them.
	RoleInfrastructure
)

func (r Role) String() string {
	if r == RoleInfrastructure {
		return "infrastructure"
	}
	return "application"
}

// Definition describes how to build one managed instance.
type Definition struct {
	// Name identifies the instance in the container.
	Name string `validate:"required,identity"`
	// Type is the type Instantiate returns. It lets type lookups find the
	// instance before it is created.
	Type reflect.Type `validate:"-"`
	// Instantiate creates the raw instance.
	Instantiate func(ctx context.Context) (any, error) `validate:"required"`
	// Populate injects collaborators into the raw instance. Collaborators
	// resolved through deps are recorded as dependencies.
	Populate func(ctx context.Context, instance any, deps Deps) error
	// Init runs after population, between the before- and
	// after-initialization post-processors.
	Init func(ctx context.Context, instance any) error
	// Destroy releases the instance at teardown. When nil, a Close method
	// on the instance is used if there is one.
	Destroy func(ctx context.Context, instance any) error
	// DependsOn names instances that must be created first and destroyed
	// after this one, without being injected.
	DependsOn []string `validate:"dive,identity"`
	// Lazy instances are skipped by PreInstantiate.
	Lazy bool
	Role Role
}

// Define builds a definition for instances of type T.
//
//	di.Define("service", NewService, func(ctx context.Context, s *Service, deps di.Deps) error {
//	    repo, err := di.Resolve[*Repository](ctx, deps, "repository")
//	    s.repo = repo
//	    return err
//	})
func Define[T any](name string, instantiate func(ctx context.Context) (T, error), populate func(ctx context.Context, instance T, deps Deps) error) Definition {
	def := Definition{
		Name: name,
		Type: reflect.TypeFor[T](),
		Instantiate: func(ctx context.Context) (any, error) {
			v, err := instantiate(ctx)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
	}
	if populate != nil {
		def.Populate = func(ctx context.Context, instance any, deps Deps) error {
			return populate(ctx, instance.(T), deps)
		}
	}
	return def
}

// Deps resolves the collaborators of one instance during population.
type Deps struct {
	c    *Container
	name string
}

// GetBean returns the instance called name and records that the instance
// being populated depends on it.
func (d Deps) GetBean(ctx context.Context, name string) (any, error) {
	v, err := d.c.GetBean(ctx, name)
	if err != nil {
		return nil, err
	}
	d.c.reg.RegisterDependency(name, d.name)
	return v, nil
}

// Owner returns the name of the instance being populated.
func (d Deps) Owner() string { return d.name }

type closer interface {
	Close() error
}

type contextCloser interface {
	Close(ctx context.Context) error
}

func destroyFunc(def *Definition, instance any) func(ctx context.Context) error {
	if def.Destroy != nil {
		return func(ctx context.Context) error { return def.Destroy(ctx, instance) }
	}
	switch c := instance.(type) {
	case contextCloser:
		return c.Close
	case closer:
		return func(context.Context) error { return c.Close() }
	}
	return nil
}
