package aop

import (
	"context"
)

// Invocation is one method call travelling through an interceptor chain.
type Invocation struct {
	ctx    context.Context
	method string
	args   []any
	target any

	chain  []Interceptor
	index  int
	invoke func(ctx context.Context, target any, method string, args []any) ([]any, error)
}

// Context returns the context of the call.
func (inv *Invocation) Context() context.Context { return inv.ctx }

// Method returns the method name.
func (inv *Invocation) Method() string { return inv.method }

// Args returns the call arguments. Interceptors may modify them before
// calling Proceed.
func (inv *Invocation) Args() []any { return inv.args }

// SetArgs replaces the call arguments.
func (inv *Invocation) SetArgs(args []any) { inv.args = args }

// Target returns the instance the call will reach.
func (inv *Invocation) Target() any { return inv.target }

// Proceed calls the next interceptor, or the target method at the end of
// the chain.
func (inv *Invocation) Proceed() ([]any, error) {
	if inv.index >= len(inv.chain) {
		return inv.invoke(inv.ctx, inv.target, inv.method, inv.args)
	}
	next := inv.chain[inv.index]
	inv.index++
	return next.Intercept(inv)
}

// WithContext replaces the context seen by the rest of the chain.
func (inv *Invocation) WithContext(ctx context.Context) {
	if ctx != nil {
		inv.ctx = ctx
	}
}
