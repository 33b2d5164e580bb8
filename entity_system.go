package staged

import (
	"sync"
	"sync/atomic"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/oriumgames/staged/internal/cmdq"
)

// globalEntityIDs hands out process-monotonic entity IDs; they are never
// reused, across worlds or steps. 0 stays invalid.
var globalEntityIDs atomic.Uint64

func nextEntityID() EntityID {
	return EntityID(globalEntityIDs.Add(1))
}

// EntitySystem is the process singleton owning every world and the step
// driver. World creation is immediate; world destruction and merging are
// deferred to the next Step call.
type EntitySystem struct {
	log  *zap.Logger
	diag Diagnostics

	mu             sync.RWMutex
	worlds         *btree.BTreeG[*World]
	worldIDCounter atomic.Uint32

	destroyWorldQ cmdq.Queue[WorldID]
	mergeWorldQ   cmdq.Queue[[2]WorldID]
}

var entitySystem = &EntitySystem{
	log:  zap.NewNop(),
	diag: NopDiagnostics{},
	worlds: btree.NewG(8, func(a, b *World) bool {
		return a.id < b.id
	}),
}

// Entities returns the process entity system.
func Entities() *EntitySystem {
	return entitySystem
}

// SetLogger installs the logger used by the entity system and by worlds
// created afterwards. Call before creating worlds.
func (es *EntitySystem) SetLogger(log *zap.Logger) {
	es.log = log
}

// SetDiagnostics installs the diagnostics sink used by worlds created
// afterwards.
func (es *EntitySystem) SetDiagnostics(d Diagnostics) {
	es.diag = d
}

// CreateWorld creates a new, immediately usable world.
func (es *EntitySystem) CreateWorld() WorldID {
	id := WorldID(es.worldIDCounter.Add(1) - 1)
	w := newWorld(id, es.log, es.diag)
	es.mu.Lock()
	es.worlds.ReplaceOrInsert(w)
	es.mu.Unlock()
	return id
}

// DestroyWorld enqueues destruction of a world and all of its content for
// the next Step boundary.
func (es *EntitySystem) DestroyWorld(id WorldID) {
	es.destroyWorldQ.Push(id)
}

// MergeWorlds enqueues merging source into target. Merging is an extension
// point whose semantics (ID remapping, global-system reconciliation) are not
// settled; the drain currently rejects the command.
func (es *EntitySystem) MergeWorlds(source, target WorldID) {
	es.mergeWorldQ.Push([2]WorldID{source, target})
}

// World resolves a world ID.
func (es *EntitySystem) World(id WorldID) (*World, bool) {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.worlds.Get(&World{id: id})
}

// WorldCount returns the number of live worlds.
func (es *EntitySystem) WorldCount() int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return es.worlds.Len()
}

// Step drains the world-level command queues, then steps every live world in
// ascending ID order. dt is the unscaled delta time of this step, fixedDt the
// fixed delta time; both are observable from system callbacks through the
// world.
func (es *EntitySystem) Step(dt, fixedDt float64) {
	es.drainWorldQueues()

	es.mu.RLock()
	worlds := make([]*World, 0, es.worlds.Len())
	es.worlds.Ascend(func(w *World) bool {
		worlds = append(worlds, w)
		return true
	})
	es.mu.RUnlock()

	for _, w := range worlds {
		w.step(dt, fixedDt)
	}
}

func (es *EntitySystem) drainWorldQueues() {
	for _, id := range es.destroyWorldQ.Drain() {
		es.mu.Lock()
		w, ok := es.worlds.Delete(&World{id: id})
		es.mu.Unlock()
		if !ok {
			es.log.Warn("world destroy skipped",
				zap.Uint16("world", uint16(id)), zap.Error(ErrWorldNotFound))
			continue
		}
		w.teardown()
	}

	for _, pair := range es.mergeWorldQ.Drain() {
		es.log.Warn("world merge is not supported; command dropped",
			zap.Uint16("source", uint16(pair[0])), zap.Uint16("target", uint16(pair[1])))
	}
}
