package aop

import (
	"fmt"
	"sync"

	"github.com/kbukum/ioc/errors"
	"github.com/kbukum/ioc/util"
)

// AdvisorAdapter turns one kind of advice into an Interceptor.
type AdvisorAdapter interface {
	SupportsAdvice(advice any) bool
	Interceptor(advisor Advisor) Interceptor
}

// AdapterRegistry wraps advice into advisors and advisors into interceptors.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters []AdvisorAdapter
}

// NewAdapterRegistry returns a registry with adapters for before,
// after-returning and after-throwing advice. Interceptors need no adapter.
func NewAdapterRegistry() *AdapterRegistry {
	r := &AdapterRegistry{}
	r.Register(beforeAdapter{})
	r.Register(afterReturningAdapter{})
	r.Register(afterThrowingAdapter{})
	return r
}

// Register adds an adapter for a custom advice kind.
func (r *AdapterRegistry) Register(a AdvisorAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
}

// Wrap returns v as an Advisor, wrapping bare advice in an advisor that
// applies everywhere.
func (r *AdapterRegistry) Wrap(v any) (Advisor, error) {
	if a, ok := v.(Advisor); ok {
		return a, nil
	}
	if _, ok := v.(Interceptor); ok {
		return NewAdvisor(v), nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.adapters {
		if a.SupportsAdvice(v) {
			return NewAdvisor(v), nil
		}
	}
	return nil, unknownAdvice(v)
}

// Interceptors returns the interceptors implementing the advice of advisor.
// Advice implementing several kinds yields one interceptor per kind.
func (r *AdapterRegistry) Interceptors(advisor Advisor) ([]Interceptor, error) {
	advice := advisor.Advice()
	var out []Interceptor
	if i, ok := advice.(Interceptor); ok {
		out = append(out, i)
	}
	r.mu.RLock()
	for _, a := range r.adapters {
		if a.SupportsAdvice(advice) {
			out = append(out, a.Interceptor(advisor))
		}
	}
	r.mu.RUnlock()
	if len(out) == 0 {
		return nil, unknownAdvice(advice)
	}
	return out, nil
}

func unknownAdvice(v any) error {
	return errors.UnresolvableInterceptionTarget(util.TypeName(v),
		fmt.Sprintf("unknown advice type %s", util.TypeName(v)))
}

type beforeAdapter struct{}

func (beforeAdapter) SupportsAdvice(advice any) bool {
	_, ok := advice.(BeforeAdvice)
	return ok
}

func (beforeAdapter) Interceptor(advisor Advisor) Interceptor {
	advice := advisor.Advice().(BeforeAdvice)
	return InterceptorFunc(func(inv *Invocation) ([]any, error) {
		if err := advice.Before(inv.Context(), inv.Method(), inv.Args(), inv.Target()); err != nil {
			return nil, err
		}
		return inv.Proceed()
	})
}

type afterReturningAdapter struct{}

func (afterReturningAdapter) SupportsAdvice(advice any) bool {
	_, ok := advice.(AfterReturningAdvice)
	return ok
}

func (afterReturningAdapter) Interceptor(advisor Advisor) Interceptor {
	advice := advisor.Advice().(AfterReturningAdvice)
	return InterceptorFunc(func(inv *Invocation) ([]any, error) {
		results, err := inv.Proceed()
		if err != nil {
			return results, err
		}
		if err := advice.AfterReturning(inv.Context(), results, inv.Method(), inv.Args(), inv.Target()); err != nil {
			return nil, err
		}
		return results, nil
	})
}

type afterThrowingAdapter struct{}

func (afterThrowingAdapter) SupportsAdvice(advice any) bool {
	_, ok := advice.(AfterThrowingAdvice)
	return ok
}

func (afterThrowingAdapter) Interceptor(advisor Advisor) Interceptor {
	advice := advisor.Advice().(AfterThrowingAdvice)
	return InterceptorFunc(func(inv *Invocation) ([]any, error) {
		results, err := inv.Proceed()
		if err != nil {
			advice.AfterThrowing(inv.Context(), inv.Method(), inv.Args(), inv.Target(), err)
		}
		return results, err
	})
}
