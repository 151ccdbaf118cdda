// Package aop wraps managed instances in interception proxies.
//
// Advice comes in four kinds: Interceptor (around), BeforeAdvice,
// AfterReturningAdvice and AfterThrowingAdvice. An Advisor pairs advice with
// matchers on the instance type, the instance name and method names. The
// AutoProxyCreator collects the advisors applying to an instance, orders
// them, and builds a Proxy whose calls run through the resulting chain:
//
//	creator := aop.NewAutoProxyCreator(
//	    aop.WithAdvisors(aop.NewAdvisor(timing, aop.WithMatchers(aop.Names("*Service")))),
//	    aop.WithStrategies(aop.ForInterface(func(p *aop.Proxy) Greeter { return greeterProxy{p} })),
//	)
//
// When a cycle requires an instance before it is populated, the creator
// hands out a proxy from EarlyReference and returns the instance unchanged
// from AfterInitialization. The proxy's target is rebound once, through
// FinalizeTarget, to the instance initialization produced.
//
// Types marked with Infrastructure, advice, advisors and matchers are never
// proxied.
package aop
