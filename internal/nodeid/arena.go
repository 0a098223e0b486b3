// internal/nodeid/arena.go
package nodeid

import (
	"fmt"
	"math"
)

type slot[T any] struct {
	version uint32
	live    bool
	value   T
}

// Arena is a slot table issuing generational handles. It is not safe for
// concurrent use; owners guard it with their own lock.
type Arena[T any] struct {
	graph GraphID
	slots []slot[T]
	free  []uint32
	live  int
}

// NewArena creates an empty arena whose handles are stamped with graph.
func NewArena[T any](graph GraphID) *Arena[T] {
	return &Arena[T]{graph: graph}
}

// Graph returns the graph id stamped on handles from this arena.
func (a *Arena[T]) Graph() GraphID {
	return a.graph
}

// Allocate stores v in a free slot (recycling released ones first) and
// returns its handle.
func (a *Arena[T]) Allocate(v T) Handle {
	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		if len(a.slots) == math.MaxUint32 {
			panic("nodeid: arena exhausted")
		}
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[idx]
	s.version++
	if s.version == 0 {
		// Wrapped around; skip the reserved zero version.
		s.version = 1
	}
	s.live = true
	s.value = v
	a.live++

	return Handle{Index: idx, Version: s.version, Graph: a.graph}
}

// Validate reports why h cannot be used, or nil if it names a live slot.
func (a *Arena[T]) Validate(h Handle) error {
	if h.Graph != a.graph {
		return fmt.Errorf("%w: %s (arena graph %d)", ErrForeignHandle, h, a.graph)
	}
	if int(h.Index) >= len(a.slots) {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	s := &a.slots[h.Index]
	if !s.live || s.version != h.Version {
		return fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return nil
}

// Valid reports whether h names a live slot of this arena.
func (a *Arena[T]) Valid(h Handle) bool {
	return a.Validate(h) == nil
}

// Get returns a pointer to the value stored under h.
func (a *Arena[T]) Get(h Handle) (*T, error) {
	if err := a.Validate(h); err != nil {
		return nil, err
	}
	return &a.slots[h.Index].value, nil
}

// Release frees the slot named by h. The slot version is bumped on the next
// Allocate, so h and any copy of it become invalid immediately.
func (a *Arena[T]) Release(h Handle) error {
	if err := a.Validate(h); err != nil {
		return err
	}
	s := &a.slots[h.Index]
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.Index)
	a.live--
	return nil
}

// Len returns the number of live slots.
func (a *Arena[T]) Len() int {
	return a.live
}

// Each calls fn for every live slot in ascending index order. fn must not
// allocate or release slots.
func (a *Arena[T]) Each(fn func(Handle, *T)) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		fn(Handle{Index: uint32(i), Version: s.version, Graph: a.graph}, &s.value)
	}
}

// Handles returns the handles of all live slots in ascending index order.
func (a *Arena[T]) Handles() []Handle {
	out := make([]Handle, 0, a.live)
	a.Each(func(h Handle, _ *T) {
		out = append(out, h)
	})
	return out
}
