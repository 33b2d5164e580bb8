package staged

import (
	"sync"
	"sync/atomic"
)

// EntityID is the monotonic global identifier of an entity, distinct from its
// allocator slot. IDs are never reused.
type EntityID uint64

// InvalidEntityID is never assigned to a live entity.
const InvalidEntityID EntityID = 0

// entitySlot is one cell of the allocator arena. The generation is atomic so
// handle liveness checks never take the allocator lock.
type entitySlot struct {
	generation atomic.Uint32
	entity     *Entity // nil while the slot is uninitialized or free
}

// EntityHandle is a generational reference to an allocator slot. The zero
// handle is invalid. A handle stays cheap to copy and safe to hold across
// steps: once the slot is freed, Live reports false and Entity returns nil.
type EntityHandle struct {
	slot *entitySlot
	gen  uint32
}

// Valid reports whether the handle references a slot at all. A valid handle
// may still be dead; see Live.
func (h EntityHandle) Valid() bool {
	return h.slot != nil
}

// Live reports whether the slot's current generation still matches the
// handle's. Lock-free.
func (h EntityHandle) Live() bool {
	return h.slot != nil && h.slot.generation.Load() == h.gen
}

// Entity returns the entity behind the handle, or nil if the handle is dead
// or the slot was never initialized.
func (h EntityHandle) Entity() *Entity {
	if !h.Live() {
		return nil
	}
	return h.slot.entity
}

// ID returns the entity ID behind the handle, or InvalidEntityID for a dead
// handle.
func (h EntityHandle) ID() EntityID {
	e := h.Entity()
	if e == nil {
		return InvalidEntityID
	}
	return e.id
}

// entityAllocator is a generational slot allocator. One process-wide instance
// backs every world. Allocation and freeing happen only at step boundaries
// under the writer lock; concurrent handle reads go through the atomic
// generations.
type entityAllocator struct {
	mu    sync.RWMutex
	slots []*entitySlot
	free  []*entitySlot
}

var globalAllocator = &entityAllocator{}

const allocatorInitialCapacity = 4096

// allocate returns a handle whose slot is uninitialized. The caller must
// attach an entity with initEntity before the handle is read.
func (a *entityAllocator) allocate() EntityHandle {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.free) == 0 {
		if a.slots == nil {
			a.slots = make([]*entitySlot, 0, allocatorInitialCapacity)
		}
		s := &entitySlot{}
		a.slots = append(a.slots, s)
		return EntityHandle{slot: s, gen: 0}
	}

	s := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	return EntityHandle{slot: s, gen: s.generation.Load()}
}

// initEntity attaches a materialized entity to a freshly allocated slot.
func (a *entityAllocator) initEntity(h EntityHandle, e *Entity) {
	h.slot.entity = e
}

// freeHandle bumps the slot generation, detaches the entity, and recycles the
// slot. Freeing a dead handle fails with ErrDoubleFree.
func (a *entityAllocator) freeHandle(h EntityHandle) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !h.Live() {
		return ErrDoubleFree
	}
	h.slot.generation.Add(1)
	h.slot.entity = nil
	a.free = append(a.free, h.slot)
	return nil
}
