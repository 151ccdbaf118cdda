package registry

import "context"

// EarlyFactory produces the early reference of an instance in creation.
type EarlyFactory func(ctx context.Context) (any, error)

type slotKind uint8

const (
	slotPending slotKind = iota + 1
	slotEarly
	slotFinished
)

func (k slotKind) String() string {
	switch k {
	case slotPending:
		return "pending"
	case slotEarly:
		return "early"
	case slotFinished:
		return "finished"
	default:
		return "absent"
	}
}

// slot is the cache state of one identity. Slots are never mutated after
// they are stored; transitions store a new slot under the singleton lock.
type slot struct {
	kind    slotKind
	value   any
	factory EarlyFactory
}

func pendingSlot(f EarlyFactory) *slot { return &slot{kind: slotPending, factory: f} }
func earlySlot(v any) *slot            { return &slot{kind: slotEarly, value: v} }
func finishedSlot(v any) *slot         { return &slot{kind: slotFinished, value: v} }

func (r *Registry) load(name string) *slot {
	if v, ok := r.slots.Load(name); ok {
		return v.(*slot)
	}
	return nil
}

func (r *Registry) finished(name string) (any, bool) {
	if s := r.load(name); s != nil && s.kind == slotFinished {
		return s.value, true
	}
	return nil, false
}
