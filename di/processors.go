package di

import (
	"cmp"
	"context"
	"reflect"
	"slices"

	"github.com/kbukum/ioc/registry"
)

// BeforeInitProcessor runs before an instance's Init and may replace it.
type BeforeInitProcessor interface {
	BeforeInitialization(ctx context.Context, instance any, name string) (any, error)
}

// AfterInitProcessor runs after an instance's Init and may replace it,
// typically with a proxy.
type AfterInitProcessor interface {
	AfterInitialization(ctx context.Context, instance any, name string) (any, error)
}

// EarlyReferenceProcessor substitutes the reference handed out for an
// instance caught in a circular reference.
type EarlyReferenceProcessor = registry.EarlyExposureHook

// TargetFinalizer is told the final instance of a name whose early
// reference was handed out.
type TargetFinalizer interface {
	FinalizeTarget(ctx context.Context, name string, target any) error
}

// DestructionProcessor runs before an instance's disposer.
type DestructionProcessor interface {
	BeforeDestruction(ctx context.Context, instance any, name string) error
}

// TypePredictor reports the type an instance will have once processed.
type TypePredictor interface {
	PredictType(name string) (reflect.Type, bool)
}

// Ordered processors run by ascending Order.
type Ordered interface {
	Order() int
}

// PriorityOrdered processors run before every other processor.
type PriorityOrdered interface {
	Ordered
	PriorityOrdered()
}

// SingletonsInstantiated is called on every instance implementing it once
// PreInstantiate has created all eager instances.
type SingletonsInstantiated interface {
	AfterSingletonsInstantiated(ctx context.Context) error
}

func isProcessor(p any) bool {
	switch p.(type) {
	case BeforeInitProcessor, AfterInitProcessor, EarlyReferenceProcessor,
		TargetFinalizer, DestructionProcessor, TypePredictor:
		return true
	}
	return false
}

// sortProcessors orders processors in three tiers: PriorityOrdered sorted
// by order, Ordered sorted by order, then the rest in registration order.
func sortProcessors(ps []any) []any {
	var priority, ordered, rest []any
	for _, p := range ps {
		switch p.(type) {
		case PriorityOrdered:
			priority = append(priority, p)
		case Ordered:
			ordered = append(ordered, p)
		default:
			rest = append(rest, p)
		}
	}
	byOrder := func(a, b any) int {
		return cmp.Compare(a.(Ordered).Order(), b.(Ordered).Order())
	}
	slices.SortStableFunc(priority, byOrder)
	slices.SortStableFunc(ordered, byOrder)

	out := make([]any, 0, len(ps))
	out = append(out, priority...)
	out = append(out, ordered...)
	return append(out, rest...)
}

func processorsOf[P any](ps []any) []P {
	var out []P
	for _, p := range ps {
		if v, ok := p.(P); ok {
			out = append(out, v)
		}
	}
	return out
}
