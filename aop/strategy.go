package aop

import (
	"reflect"
)

// Strategy builds the value exposed for a proxy.
type Strategy interface {
	// Supports reports whether the strategy can front instances of type t.
	Supports(t reflect.Type) bool
	// Build returns the exposed value for p.
	Build(p *Proxy) any
}

type interfaceStrategy[T any] struct {
	iface reflect.Type
	build func(p *Proxy) T
}

// ForInterface registers a typed front for interface T. build returns an
// implementation of T whose methods forward to p, usually through Call:
//
//	type greeterProxy struct{ p *aop.Proxy }
//
//	func (g greeterProxy) Greet(ctx context.Context, name string) (string, error) {
//	    return aop.Call[string](ctx, g.p, "Greet", name)
//	}
//
//	aop.ForInterface(func(p *aop.Proxy) Greeter { return greeterProxy{p} })
//
// The strategy supports every target type implementing T.
func ForInterface[T any](build func(p *Proxy) T) Strategy {
	return &interfaceStrategy[T]{iface: reflect.TypeFor[T](), build: build}
}

func (s *interfaceStrategy[T]) Supports(t reflect.Type) bool {
	return s.iface.Kind() == reflect.Interface && t != nil && t.Implements(s.iface)
}

func (s *interfaceStrategy[T]) Build(p *Proxy) any {
	return s.build(p)
}

type reflectiveStrategy struct{}

// Reflective exposes the *Proxy itself; callers use Proxy.Invoke or Call.
// It supports any type with at least one exported method.
func Reflective() Strategy { return reflectiveStrategy{} }

func (reflectiveStrategy) Supports(t reflect.Type) bool {
	return t != nil && t.NumMethod() > 0
}

func (reflectiveStrategy) Build(p *Proxy) any { return p }
