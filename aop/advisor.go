package aop

import (
	"cmp"
	"context"
	"math"
	"path"
	"reflect"
	"slices"
)

// LowestPrecedence is the order of advisors that declare none.
const LowestPrecedence = math.MaxInt32

// Ordered is implemented by advisors and advice with an explicit order.
// Lower values run first, that is, further out in the interceptor chain.
type Ordered interface {
	Order() int
}

// Advisor pairs advice with the matchers deciding where it applies.
type Advisor interface {
	Advice() any
	Matchers() []Matcher
}

// Matcher is one predicate of an advisor. The set of matcher kinds is
// closed: TypeMatcher, NameMatcher and MethodMatcher.
type Matcher interface {
	matcher()
}

// TypeMatcher filters on the dynamic type of the target instance.
type TypeMatcher struct {
	Match func(t reflect.Type) bool
}

// NameMatcher filters on the instance name with path.Match patterns.
type NameMatcher struct {
	Patterns []string
}

// MethodMatcher filters on method names. An advisor applies to an instance
// when its MethodMatcher accepts at least one of the instance's methods, and
// its advice runs only for accepted methods.
type MethodMatcher struct {
	Match func(method string) bool
}

func (TypeMatcher) matcher()   {}
func (NameMatcher) matcher()   {}
func (MethodMatcher) matcher() {}

// Implementing matches instances whose type implements the interface I.
func Implementing[I any]() TypeMatcher {
	iface := reflect.TypeFor[I]()
	return TypeMatcher{Match: func(t reflect.Type) bool {
		return iface.Kind() == reflect.Interface && t.Implements(iface)
	}}
}

// OfType matches instances of exactly type T.
func OfType[T any]() TypeMatcher {
	want := reflect.TypeFor[T]()
	return TypeMatcher{Match: func(t reflect.Type) bool { return t == want }}
}

// Names matches instance names against path.Match patterns.
func Names(patterns ...string) NameMatcher {
	return NameMatcher{Patterns: patterns}
}

// Methods matches the listed method names.
func Methods(names ...string) MethodMatcher {
	return MethodMatcher{Match: func(method string) bool { return slices.Contains(names, method) }}
}

// MethodPattern matches method names against a path.Match pattern.
func MethodPattern(pattern string) MethodMatcher {
	return MethodMatcher{Match: func(method string) bool {
		ok, err := path.Match(pattern, method)
		return err == nil && ok
	}}
}

func (m NameMatcher) matches(name string) bool {
	for _, p := range m.Patterns {
		if ok, err := path.Match(p, name); err == nil && ok {
			return true
		}
	}
	return false
}

// DefaultAdvisor is the Advisor built by NewAdvisor.
type DefaultAdvisor struct {
	name     string
	advice   any
	matchers []Matcher
	order    int
	ordered  bool
}

// AdvisorOption configures a DefaultAdvisor.
type AdvisorOption func(*DefaultAdvisor)

// WithOrder sets the advisor order.
func WithOrder(order int) AdvisorOption {
	return func(a *DefaultAdvisor) {
		a.order = order
		a.ordered = true
	}
}

// WithMatchers appends matchers. An advisor without matchers applies to
// every instance and method.
func WithMatchers(m ...Matcher) AdvisorOption {
	return func(a *DefaultAdvisor) { a.matchers = append(a.matchers, m...) }
}

// WithAdvisorName names the advisor for logs.
func WithAdvisorName(name string) AdvisorOption {
	return func(a *DefaultAdvisor) { a.name = name }
}

// NewAdvisor creates an advisor for advice.
func NewAdvisor(advice any, opts ...AdvisorOption) *DefaultAdvisor {
	a := &DefaultAdvisor{advice: advice}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *DefaultAdvisor) Advice() any         { return a.advice }
func (a *DefaultAdvisor) Matchers() []Matcher { return a.matchers }
func (a *DefaultAdvisor) Name() string        { return a.name }
func (a *DefaultAdvisor) Infrastructure()     {}

// Order returns the configured order, falling back to the order of the
// advice and then to LowestPrecedence.
func (a *DefaultAdvisor) Order() int {
	if a.ordered {
		return a.order
	}
	if o, ok := a.advice.(Ordered); ok {
		return o.Order()
	}
	return LowestPrecedence
}

// OrderOf returns the order of an advisor.
func OrderOf(a Advisor) int {
	if o, ok := a.(Ordered); ok {
		return o.Order()
	}
	if o, ok := a.Advice().(Ordered); ok {
		return o.Order()
	}
	return LowestPrecedence
}

// Comparator orders eligible advisors.
type Comparator func(a, b Advisor) int

// ByOrder compares advisors by OrderOf.
func ByOrder(a, b Advisor) int {
	return cmp.Compare(OrderOf(a), OrderOf(b))
}

// canApply reports whether advisor applies to an instance of type t named
// name: every type and name matcher accepts, and the method matchers accept
// at least one exported method.
func canApply(advisor Advisor, t reflect.Type, name string) bool {
	var methodMatchers []MethodMatcher
	for _, m := range advisor.Matchers() {
		switch m := m.(type) {
		case TypeMatcher:
			if m.Match != nil && !m.Match(t) {
				return false
			}
		case NameMatcher:
			if !m.matches(name) {
				return false
			}
		case MethodMatcher:
			methodMatchers = append(methodMatchers, m)
		}
	}
	if len(methodMatchers) == 0 {
		return true
	}
	for i := 0; i < t.NumMethod(); i++ {
		if methodApplies(methodMatchers, t.Method(i).Name) {
			return true
		}
	}
	return false
}

// appliesToMethod reports whether advisor's method matchers accept method.
func appliesToMethod(advisor Advisor, method string) bool {
	var methodMatchers []MethodMatcher
	for _, m := range advisor.Matchers() {
		if mm, ok := m.(MethodMatcher); ok {
			methodMatchers = append(methodMatchers, mm)
		}
	}
	return len(methodMatchers) == 0 || methodApplies(methodMatchers, method)
}

func methodApplies(matchers []MethodMatcher, method string) bool {
	for _, mm := range matchers {
		if mm.Match != nil && !mm.Match(method) {
			return false
		}
	}
	return true
}

// StaticAdvisors is an AdvisorSource over a fixed list.
type StaticAdvisors []Advisor

// CandidateAdvisors returns the list.
func (s StaticAdvisors) CandidateAdvisors(context.Context) ([]Advisor, error) {
	return s, nil
}
