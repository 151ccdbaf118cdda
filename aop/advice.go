package aop

import (
	"context"
)

// Interceptor is around advice: it wraps a method call and decides whether,
// and with what arguments, the call proceeds.
type Interceptor interface {
	Intercept(inv *Invocation) ([]any, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(inv *Invocation) ([]any, error)

func (f InterceptorFunc) Intercept(inv *Invocation) ([]any, error) { return f(inv) }

// BeforeAdvice runs before the method. An error aborts the call.
type BeforeAdvice interface {
	Before(ctx context.Context, method string, args []any, target any) error
}

// BeforeFunc adapts a function to BeforeAdvice.
type BeforeFunc func(ctx context.Context, method string, args []any, target any) error

func (f BeforeFunc) Before(ctx context.Context, method string, args []any, target any) error {
	return f(ctx, method, args, target)
}

// AfterReturningAdvice runs after the method returned without error. An
// error replaces the result.
type AfterReturningAdvice interface {
	AfterReturning(ctx context.Context, results []any, method string, args []any, target any) error
}

// AfterReturningFunc adapts a function to AfterReturningAdvice.
type AfterReturningFunc func(ctx context.Context, results []any, method string, args []any, target any) error

func (f AfterReturningFunc) AfterReturning(ctx context.Context, results []any, method string, args []any, target any) error {
	return f(ctx, results, method, args, target)
}

// AfterThrowingAdvice observes a method error. The error is returned to the
// caller unchanged.
type AfterThrowingAdvice interface {
	AfterThrowing(ctx context.Context, method string, args []any, target any, err error)
}

// AfterThrowingFunc adapts a function to AfterThrowingAdvice.
type AfterThrowingFunc func(ctx context.Context, method string, args []any, target any, err error)

func (f AfterThrowingFunc) AfterThrowing(ctx context.Context, method string, args []any, target any, err error) {
	f(ctx, method, args, target, err)
}

// Infrastructure marks types that take part in proxying and must never be
// proxied themselves.
type Infrastructure interface {
	Infrastructure()
}

// isAdvice reports whether v is one of the advice kinds.
func isAdvice(v any) bool {
	switch v.(type) {
	case Interceptor, BeforeAdvice, AfterReturningAdvice, AfterThrowingAdvice:
		return true
	}
	return false
}
