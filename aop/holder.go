package aop

import (
	"fmt"
	"sync/atomic"
)

// TargetSource supplies the instance a proxy forwards to.
type TargetSource interface {
	Target() any
}

// TargetHolder is a swappable target cell. It is written once when the proxy
// is built and may be rebound exactly once, when the instance it was built
// around has finished construction. Later rebinds fail.
type TargetHolder struct {
	target  atomic.Pointer[box]
	rebound atomic.Bool
}

type box struct{ v any }

// NewTargetHolder returns a holder around target that allows one rebind.
func NewTargetHolder(target any) *TargetHolder {
	h := &TargetHolder{}
	h.target.Store(&box{v: target})
	return h
}

// newBoundHolder returns a holder whose single rebind is already spent.
func newBoundHolder(target any) *TargetHolder {
	h := NewTargetHolder(target)
	h.rebound.Store(true)
	return h
}

// Target returns the current target.
func (h *TargetHolder) Target() any {
	return h.target.Load().v
}

// Rebind replaces the target. Only the first call succeeds.
func (h *TargetHolder) Rebind(target any) error {
	if target == nil {
		return fmt.Errorf("cannot rebind target holder to nil")
	}
	if !h.rebound.CompareAndSwap(false, true) {
		return fmt.Errorf("target holder already rebound")
	}
	h.target.Store(&box{v: target})
	return nil
}

// Rebound reports whether the single rebind has happened.
func (h *TargetHolder) Rebound() bool {
	return h.rebound.Load()
}

func (h *TargetHolder) Infrastructure() {}
