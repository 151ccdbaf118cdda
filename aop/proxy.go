package aop

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/ioc/errors"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Proxy forwards method calls through an interceptor chain to the current
// content of its target source.
type Proxy struct {
	id         string
	name       string
	targetType reflect.Type
	source     TargetSource
	advisors   []Advisor
	adapters   *AdapterRegistry

	chains sync.Map // method name -> []Interceptor
}

// NewProxy builds a proxy over source. advisors must already be in chain
// order.
func NewProxy(name string, source TargetSource, advisors []Advisor, adapters *AdapterRegistry) *Proxy {
	if adapters == nil {
		adapters = NewAdapterRegistry()
	}
	return &Proxy{
		id:         uuid.NewString(),
		name:       name,
		targetType: reflect.TypeOf(source.Target()),
		source:     source,
		advisors:   advisors,
		adapters:   adapters,
	}
}

// ID returns the proxy ID.
func (p *Proxy) ID() string { return p.id }

// Name returns the name of the proxied instance.
func (p *Proxy) Name() string { return p.name }

// Target returns the instance calls currently reach.
func (p *Proxy) Target() any { return p.source.Target() }

// TargetType returns the type of the instance the proxy was built around.
func (p *Proxy) TargetType() reflect.Type { return p.targetType }

// Advisors returns the advisors in chain order.
func (p *Proxy) Advisors() []Advisor {
	out := make([]Advisor, len(p.advisors))
	copy(out, p.advisors)
	return out
}

// Invoke calls method on the target through the interceptor chain. When the
// method's first parameter is a context.Context, ctx is passed for it and
// args hold the remaining parameters. A trailing error result is returned as
// the error; the other results are returned in order.
func (p *Proxy) Invoke(ctx context.Context, method string, args ...any) ([]any, error) {
	chain, err := p.chain(method)
	if err != nil {
		return nil, err
	}
	inv := &Invocation{
		ctx:    ctx,
		method: method,
		args:   args,
		target: p.source.Target(),
		chain:  chain,
		invoke: callMethod,
	}
	return inv.Proceed()
}

// chain returns the cached interceptors applying to method.
func (p *Proxy) chain(method string) ([]Interceptor, error) {
	if c, ok := p.chains.Load(method); ok {
		return c.([]Interceptor), nil
	}
	var chain []Interceptor
	for _, a := range p.advisors {
		if !appliesToMethod(a, method) {
			continue
		}
		interceptors, err := p.adapters.Interceptors(a)
		if err != nil {
			return nil, err
		}
		chain = append(chain, interceptors...)
	}
	c, _ := p.chains.LoadOrStore(method, chain)
	return c.([]Interceptor), nil
}

func (p *Proxy) Infrastructure() {}

// callMethod invokes method on target by reflection.
func callMethod(ctx context.Context, target any, method string, args []any) ([]any, error) {
	rv := reflect.ValueOf(target)
	m := rv.MethodByName(method)
	if !m.IsValid() {
		return nil, errors.NotFound("method", fmt.Sprintf("%T.%s", target, method))
	}
	mt := m.Type()

	in := make([]reflect.Value, 0, len(args)+1)
	if mt.NumIn() > 0 && mt.In(0) == contextType {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
	}
	if want := fixed - len(in); len(args) < want || (!mt.IsVariadic() && len(args) != want) {
		return nil, errors.InvalidInput("args", fmt.Sprintf("%s expects %d arguments, got %d", method, want, len(args)))
	}
	for i, a := range args {
		pt := paramType(mt, len(in))
		v, err := argValue(a, pt)
		if err != nil {
			return nil, errors.InvalidInput("args", fmt.Sprintf("%s argument %d: %v", method, i, err))
		}
		in = append(in, v)
	}

	out := m.Call(in)

	var err error
	if n := mt.NumOut(); n > 0 && mt.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			err = e.Interface().(error)
		}
		out = out[:n-1]
	}
	results := make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, err
}

func paramType(mt reflect.Type, i int) reflect.Type {
	if mt.IsVariadic() && i >= mt.NumIn()-1 {
		return mt.In(mt.NumIn() - 1).Elem()
	}
	return mt.In(i)
}

func argValue(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		if t.Kind() == reflect.Interface {
			iv := reflect.New(t).Elem()
			iv.Set(v)
			return iv, nil
		}
		return v, nil
	}
	if v.Type().ConvertibleTo(t) && losslessConvertible(v.Type(), t) {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), t)
}

// losslessConvertible reports whether converting from to to preserves every
// value of from. Conversions within a kind only rename the type; across kinds
// only numeric widening qualifies.
func losslessConvertible(from, to reflect.Type) bool {
	if from.Kind() == to.Kind() {
		return true
	}
	switch {
	case isSigned(from) && isSigned(to):
		return to.Bits() > from.Bits()
	case isUnsigned(from) && isUnsigned(to):
		return to.Bits() > from.Bits()
	case isUnsigned(from) && isSigned(to):
		return to.Bits() > from.Bits()
	case isFloat(from) && isFloat(to):
		return to.Bits() > from.Bits()
	case (isSigned(from) || isUnsigned(from)) && isFloat(to):
		return from.Bits() <= mantissaBits(to)
	}
	return false
}

func isSigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

func isUnsigned(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return false
}

func isFloat(t reflect.Type) bool {
	return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
}

func mantissaBits(t reflect.Type) int {
	if t.Kind() == reflect.Float32 {
		return 24
	}
	return 53
}

// Call invokes method through p and returns its first result as T.
func Call[T any](ctx context.Context, p *Proxy, method string, args ...any) (T, error) {
	var zero T
	results, err := p.Invoke(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(results) == 0 {
		return zero, nil
	}
	if results[0] == nil {
		return zero, nil
	}
	v, ok := results[0].(T)
	if !ok {
		return zero, errors.Internal(fmt.Errorf("%s returned %T, want %T", method, results[0], zero))
	}
	return v, nil
}

// CallErr invokes method through p and returns only its error.
func CallErr(ctx context.Context, p *Proxy, method string, args ...any) error {
	_, err := p.Invoke(ctx, method, args...)
	return err
}
