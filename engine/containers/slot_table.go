package containers

import (
	"github.com/fennelvane/ember/engine/core"
)

// Handle identifies an entry in a SlotTable. The zero value is invalid.
// The generation tag lets the table reject handles whose slot has been
// freed and reused since the handle was issued.
type Handle struct {
	index      uint32
	generation uint32
}

// NilHandle never addresses a live entry.
var NilHandle = Handle{}

func (h Handle) IsValid() bool {
	return h.generation != 0
}

func (h Handle) Index() uint32 {
	return h.index
}

type slot[T any] struct {
	value      T
	generation uint32
	occupied   bool
}

// SlotTable is a fixed-capacity table addressed by generation-tagged
// handles. Insertion scans for the first free slot; removal bumps the
// slot generation so outstanding handles go stale instead of aliasing
// the next occupant. Owned by the control thread, no locking.
type SlotTable[T any] struct {
	slots []slot[T]
	count int
}

func NewSlotTable[T any](capacity uint32) *SlotTable[T] {
	return &SlotTable[T]{
		slots: make([]slot[T], capacity),
	}
}

// Insert stores value in the first free slot. Returns NilHandle and
// ErrTableFull when the table is at capacity.
func (t *SlotTable[T]) Insert(value T) (Handle, error) {
	for i := range t.slots {
		if t.slots[i].occupied {
			continue
		}
		if t.slots[i].generation == 0 {
			t.slots[i].generation = 1
		}
		t.slots[i].value = value
		t.slots[i].occupied = true
		t.count++
		return Handle{index: uint32(i), generation: t.slots[i].generation}, nil
	}
	return NilHandle, core.ErrTableFull
}

func (t *SlotTable[T]) valid(h Handle) *slot[T] {
	if !h.IsValid() || int(h.index) >= len(t.slots) {
		return nil
	}
	s := &t.slots[h.index]
	if !s.occupied || s.generation != h.generation {
		return nil
	}
	return s
}

// Valid reports whether h addresses a live entry.
func (t *SlotTable[T]) Valid(h Handle) bool {
	return t.valid(h) != nil
}

// With runs fn against the entry addressed by h. Returns false without
// calling fn when the handle is empty or stale.
func (t *SlotTable[T]) With(h Handle, fn func(*T)) bool {
	s := t.valid(h)
	if s == nil {
		return false
	}
	fn(&s.value)
	return true
}

// Remove frees the slot and returns the removed value so the caller can
// release resources it owns. The slot generation is bumped, invalidating
// every handle issued for the old occupant.
func (t *SlotTable[T]) Remove(h Handle) (T, bool) {
	s := t.valid(h)
	if s == nil {
		var zero T
		return zero, false
	}
	value := s.value
	var zero T
	s.value = zero
	s.occupied = false
	s.generation++
	t.count--
	return value, true
}

// Range calls fn for every occupied slot in index order until fn
// returns false.
func (t *SlotTable[T]) Range(fn func(Handle, *T) bool) {
	for i := range t.slots {
		if !t.slots[i].occupied {
			continue
		}
		h := Handle{index: uint32(i), generation: t.slots[i].generation}
		if !fn(h, &t.slots[i].value) {
			return
		}
	}
}

func (t *SlotTable[T]) Len() int {
	return t.count
}

func (t *SlotTable[T]) Cap() int {
	return len(t.slots)
}
