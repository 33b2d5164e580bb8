package staged

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"go.uber.org/zap"

	"github.com/oriumgames/staged/internal/bitset"
	"github.com/oriumgames/staged/internal/cmdq"
	"github.com/oriumgames/staged/internal/event"
)

// WorldID identifies a world within the entity system.
type WorldID uint16

type pendingCreate struct {
	id   EntityID
	desc *SpawnDescription
}

type reparentCmd struct {
	child  EntityID
	parent EntityID // InvalidEntityID clears the parent
}

type gsLoadCmd struct {
	id  GlobalSystemID
	arg any
}

type worldEntry struct {
	id EntityID
	h  EntityHandle
}

// World is an isolated container of entities, deferred command queues, and
// per-world global-system instances. Worlds never share entities.
//
// Public mutators are callable from any goroutine; they only enqueue
// commands, drained at the start of the world's next step. Entity state is
// touched exclusively by the simulation driver during a step.
type World struct {
	id   WorldID
	log  *zap.Logger
	diag Diagnostics

	// entities is keyed and iterated by EntityID, so run-list refreshes and
	// debug walks are deterministic.
	entities *btree.BTreeG[worldEntry]

	createQ   cmdq.Queue[pendingCreate]
	destroyQ  cmdq.Queue[EntityID]
	reparentQ cmdq.Queue[reparentCmd]
	gsLoadQ   cmdq.Queue[gsLoadCmd]
	gsUnloadQ cmdq.Queue[GlobalSystemID]

	// Global-system state, one slot per class.
	gsInstances []GlobalSystem
	gsRefs      []int
	gsManual    []bool
	gsEntities  [][]EntityHandle

	// Precomputed run lists. Only roots of spatial subtrees appear in
	// stageEntities; descendants are reached by DFS.
	stageEntities [StageCount][]EntityHandle
	stageGlobals  [StageCount][]GlobalSystemID
	dirtyStages   *bitset.BitSet
	dirtyGlobals  bool

	currentCamera atomic.Uint64

	events     *event.Bus
	createdW   event.Writer[EntityCreated]
	destroyedW event.Writer[EntityDestroyed]

	// destroyed collects slots to return to the allocator once all stages of
	// the current step have completed.
	destroyed []EntityHandle

	dt      float64
	fixedDt float64
}

func newWorld(id WorldID, log *zap.Logger, diag Diagnostics) *World {
	gsCount := globalRegistries.globalSystemCount()
	w := &World{
		id:   id,
		log:  log.With(zap.Uint16("world", uint16(id))),
		diag: diag,
		entities: btree.NewG(16, func(a, b worldEntry) bool {
			return a.id < b.id
		}),
		gsInstances: make([]GlobalSystem, gsCount),
		gsRefs:      make([]int, gsCount),
		gsManual:    make([]bool, gsCount),
		gsEntities:  make([][]EntityHandle, gsCount),
		dirtyStages: bitset.New(stageBitmapWords),
		events:      event.NewBus(),
	}
	w.createdW = event.WriterFor[EntityCreated](w.events)
	w.destroyedW = event.WriterFor[EntityDestroyed](w.events)

	for gsID := 0; gsID < gsCount; gsID++ {
		if globalRegistries.gsEntry(GlobalSystemID(gsID)).lifetime == AlwaysLive {
			w.loadGSInstance(GlobalSystemID(gsID), nil)
		}
	}
	return w
}

// ID returns the world's identifier.
func (w *World) ID() WorldID { return w.id }

// CreateEntity validates the spawn description and enqueues materialization
// for the next step boundary. The returned EntityID is final; the entity
// becomes observable once the step runs. The description must not be reused.
func (w *World) CreateEntity(sd *SpawnDescription) (EntityID, error) {
	if err := sd.Validate(); err != nil {
		return InvalidEntityID, err
	}
	id := nextEntityID()
	w.createQ.Push(pendingCreate{id: id, desc: sd})
	return id, nil
}

// DestroyEntity enqueues destruction for the next step boundary. Destroying a
// spatial entity destroys its whole subtree. Dead or unknown IDs are ignored
// at drain time.
func (w *World) DestroyEntity(id EntityID) {
	w.destroyQ.Push(id)
}

// SetParent enqueues a reparent of child under parent. Pass InvalidEntityID
// to make child a root. Cycles and dead entities are rejected at drain time
// and logged.
func (w *World) SetParent(child, parent EntityID) {
	w.reparentQ.Push(reparentCmd{child: child, parent: parent})
}

// GetEntity resolves an entity ID to its handle; the zero handle if the
// entity is not present.
func (w *World) GetEntity(id EntityID) EntityHandle {
	entry, ok := w.entities.Get(worldEntry{id: id})
	if !ok {
		return EntityHandle{}
	}
	return entry.h
}

// EntityCount returns the number of live entities in the world.
func (w *World) EntityCount() int { return w.entities.Len() }

// Entities calls fn for every live entity in ascending ID order; fn returning
// false stops the walk.
func (w *World) Entities(fn func(EntityHandle) bool) {
	w.entities.Ascend(func(entry worldEntry) bool {
		return fn(entry.h)
	})
}

// SetCurrentCamera marks the entity whose camera the render frontier should
// use.
func (w *World) SetCurrentCamera(id EntityID) {
	w.currentCamera.Store(uint64(id))
}

// CurrentCamera returns the current camera entity, or InvalidEntityID.
func (w *World) CurrentCamera() EntityID {
	return EntityID(w.currentCamera.Load())
}

// DeltaTime returns the unscaled delta time of the current step.
func (w *World) DeltaTime() float64 { return w.dt }

// FixedDeltaTime returns the fixed delta time of the current step.
func (w *World) FixedDeltaTime() float64 { return w.fixedDt }

// Global systems ----------------------------------------------------------

// LoadGlobalSystemByID enqueues a manual load. Fails immediately with
// ErrNotManualLifetime for classes not declared Manual.
func (w *World) LoadGlobalSystemByID(id GlobalSystemID, arg any) error {
	if globalRegistries.gsEntry(id).lifetime != Manual {
		return ErrNotManualLifetime
	}
	w.gsLoadQ.Push(gsLoadCmd{id: id, arg: arg})
	return nil
}

// UnloadGlobalSystemByID enqueues a manual unload. Fails immediately with
// ErrNotManualLifetime for classes not declared Manual and with
// ErrStillRequired while entities still request the system.
func (w *World) UnloadGlobalSystemByID(id GlobalSystemID) error {
	if globalRegistries.gsEntry(id).lifetime != Manual {
		return ErrNotManualLifetime
	}
	if w.gsRefs[id] > 0 {
		return ErrStillRequired
	}
	w.gsUnloadQ.Push(id)
	return nil
}

// LoadGlobalSystem enqueues a manual load of the global system registered
// with concrete type T.
func LoadGlobalSystem[T GlobalSystem](w *World, arg any) error {
	return w.LoadGlobalSystemByID(GlobalSystemIDFor[T](), arg)
}

// UnloadGlobalSystem enqueues a manual unload of the global system registered
// with concrete type T.
func UnloadGlobalSystem[T GlobalSystem](w *World) error {
	return w.UnloadGlobalSystemByID(GlobalSystemIDFor[T]())
}

// GlobalSystemLoaded reports whether the world holds an instance of the
// class.
func (w *World) GlobalSystemLoaded(id GlobalSystemID) bool {
	return w.gsInstances[id] != nil
}

// GlobalSystemManuallyLoaded reports whether the world's instance came from
// an explicit LoadGlobalSystem call that has not been unloaded.
func (w *World) GlobalSystemManuallyLoaded(id GlobalSystemID) bool {
	return w.gsManual[id]
}

// GlobalSystemInstance returns the world's instance of the global system
// registered with concrete type T, or nil when not loaded.
func GlobalSystemInstance[T GlobalSystem](w *World) *T {
	gs := w.gsInstances[GlobalSystemIDFor[T]()]
	if gs == nil {
		return nil
	}
	return gs.(*T)
}

func (w *World) loadGSInstance(id GlobalSystemID, arg any) {
	entry := globalRegistries.gsEntry(id)
	gs := entry.factory()
	switch entry.mode {
	case InitNone:
	case InitNoArg:
		gs.Init(nil)
	case InitArg, InitOptionalArg:
		gs.Init(arg)
	}
	w.gsInstances[id] = gs
	w.dirtyGlobals = true
}

func (w *World) unloadGSInstance(id GlobalSystemID) {
	w.gsInstances[id] = nil
	w.dirtyGlobals = true
}

// Step ---------------------------------------------------------------------

// step drains the command queues in their fixed order, refreshes the run
// lists, executes every stage, and finalizes destruction.
func (w *World) step(dt, fixedDt float64) {
	w.dt, w.fixedDt = dt, fixedDt

	w.drainDestroys()
	w.drainCreates()
	w.drainReparents()
	w.drainGSLoads()
	w.drainGSUnloads()

	w.refreshRunLists()

	for s := 0; s < StageCount; s++ {
		w.runStage(StageID(s))
	}

	w.finalizeStep()
}

func (w *World) drainDestroys() {
	for _, id := range w.destroyQ.Drain() {
		h := w.GetEntity(id)
		e := h.Entity()
		if e == nil {
			w.log.Debug("destroy of dead entity ignored",
				zap.Uint64("entity", uint64(id)), zap.Error(ErrEntityNotFound))
			continue
		}
		if e.spatial != nil {
			detachParent(e)
			for _, sub := range collectSubtree(e, nil) {
				w.removeEntity(sub)
			}
		} else {
			w.removeEntity(h)
		}
	}
}

// removeEntity detaches an entity from every world structure. The slot stays
// live until finalizeStep so handles held by this step's readers do not
// dangle. Idempotent: an entity already removed this step (destroyed both
// directly and through a cascade) is skipped.
func (w *World) removeEntity(h EntityHandle) {
	e := h.Entity()
	if e == nil {
		return
	}
	if _, present := w.entities.Delete(worldEntry{id: e.id}); !present {
		return
	}

	for _, gsID := range sortedSet(e.globalSystems) {
		list := w.gsEntities[gsID]
		for i, reg := range list {
			if reg == h {
				w.gsEntities[gsID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		w.gsRefs[gsID]--
		if w.gsRefs[gsID] == 0 &&
			globalRegistries.gsEntry(gsID).lifetime == WhenRequired &&
			w.gsInstances[gsID] != nil {
			w.unloadGSInstance(gsID)
		}
	}

	if EntityID(w.currentCamera.Load()) == e.id {
		w.currentCamera.Store(uint64(InvalidEntityID))
	}

	w.markStagesDirty(e)
	w.destroyed = append(w.destroyed, h)
	w.destroyedW.Emit(EntityDestroyed{Entity: e.id})
}

func (w *World) drainCreates() {
	for _, pc := range w.createQ.Drain() {
		h := globalAllocator.allocate()
		e := newEntity(pc.id, h, pc.desc)
		globalAllocator.initEntity(h, e)
		w.entities.ReplaceOrInsert(worldEntry{id: pc.id, h: h})

		for _, gsID := range sortedSet(e.globalSystems) {
			w.gsRefs[gsID]++
			if w.gsInstances[gsID] == nil &&
				globalRegistries.gsEntry(gsID).lifetime == WhenRequired {
				w.loadGSInstance(gsID, nil)
			}
			w.gsEntities[gsID] = append(w.gsEntities[gsID], h)
		}

		if pc.desc.parent != InvalidEntityID {
			w.applyReparent(pc.id, pc.desc.parent)
		}
		children := pc.desc.children.ToSlice()
		slices.Sort(children)
		for _, child := range children {
			w.applyReparent(child, pc.id)
		}

		w.markStagesDirty(e)
		w.createdW.Emit(EntityCreated{Entity: pc.id})
	}
}

func (w *World) drainReparents() {
	for _, cmd := range w.reparentQ.Drain() {
		w.applyReparent(cmd.child, cmd.parent)
	}
}

// applyReparent performs one reparent immediately. Failures are logged and
// skipped, never fatal.
func (w *World) applyReparent(childID, parentID EntityID) {
	child := w.GetEntity(childID).Entity()
	if child == nil {
		w.log.Warn("reparent skipped: child not found",
			zap.Uint64("child", uint64(childID)), zap.Error(ErrEntityNotFound))
		return
	}
	if child.spatial == nil {
		w.log.Warn("reparent skipped: child is not spatial", zap.Uint64("child", uint64(childID)))
		return
	}

	if parentID == InvalidEntityID {
		detachParent(child)
		w.markStagesDirty(child)
		return
	}

	parent := w.GetEntity(parentID).Entity()
	if parent == nil {
		w.log.Warn("reparent skipped: parent not found",
			zap.Uint64("child", uint64(childID)), zap.Uint64("parent", uint64(parentID)),
			zap.Error(ErrUnknownParent))
		return
	}
	if parent.spatial == nil {
		w.log.Warn("reparent skipped: parent is not spatial",
			zap.Uint64("child", uint64(childID)), zap.Uint64("parent", uint64(parentID)))
		return
	}
	if err := attachParent(child, parent); err != nil {
		w.log.Warn("reparent skipped",
			zap.Uint64("child", uint64(childID)), zap.Uint64("parent", uint64(parentID)),
			zap.Error(err))
		return
	}
	w.markStagesDirty(child)
}

func (w *World) drainGSLoads() {
	for _, cmd := range w.gsLoadQ.Drain() {
		if w.gsInstances[cmd.id] != nil {
			w.gsManual[cmd.id] = true
			continue
		}
		w.loadGSInstance(cmd.id, cmd.arg)
		w.gsManual[cmd.id] = true
	}
}

func (w *World) drainGSUnloads() {
	for _, id := range w.gsUnloadQ.Drain() {
		if w.gsRefs[id] > 0 {
			w.log.Warn("global system unload skipped",
				zap.String("system", globalRegistries.gsEntry(id).name),
				zap.Error(ErrStillRequired))
			continue
		}
		if w.gsInstances[id] == nil {
			continue
		}
		w.gsManual[id] = false
		w.unloadGSInstance(id)
	}
}

// markStagesDirty flags every stage whose run list may be affected by a
// structural change around the entity.
func (w *World) markStagesDirty(e *Entity) {
	e.stageEnabled.ForEach(func(s int) bool {
		w.dirtyStages.Set(s)
		return true
	})
	if e.spatial != nil {
		for s := 0; s < StageCount; s++ {
			if e.spatial.stageCounts[s].Load() > 0 {
				w.dirtyStages.Set(s)
			}
		}
	}
}

// refreshRunLists rebuilds the per-stage entity lists for dirty stages and
// the per-stage global-system lists when load state changed.
func (w *World) refreshRunLists() {
	w.dirtyStages.ForEach(func(s int) bool {
		stage := StageID(s)
		list := w.stageEntities[s][:0]
		w.entities.Ascend(func(entry worldEntry) bool {
			if e := entry.h.Entity(); e != nil && e.shouldRunInStage(stage) {
				list = append(list, entry.h)
			}
			return true
		})
		w.stageEntities[s] = list
		return true
	})
	w.dirtyStages.Reset()

	if w.dirtyGlobals {
		for s := 0; s < StageCount; s++ {
			list := w.stageGlobals[s][:0]
			for gsID := range w.gsInstances {
				id := GlobalSystemID(gsID)
				if w.gsInstances[gsID] != nil && globalRegistries.gsEntry(id).fns[s] != nil {
					list = append(list, id)
				}
			}
			w.stageGlobals[s] = list
		}
		w.dirtyGlobals = false
	}
}

// runStage executes one stage: local systems over every scheduled entity
// (DFS for spatial roots), then loaded global systems in ascending class ID
// order.
func (w *World) runStage(s StageID) {
	ents := w.stageEntities[s]
	globals := w.stageGlobals[s]
	if len(ents) == 0 && len(globals) == 0 {
		return
	}

	w.diag.StageStart(w.id, s)
	start := time.Now()

	for _, h := range ents {
		e := h.Entity()
		if e == nil {
			continue
		}
		if e.spatial != nil {
			runStageRecursive(w, e, s)
		} else {
			e.runStage(w, s)
		}
	}

	for _, gsID := range globals {
		fn := globalRegistries.gsEntry(gsID).fns[s]
		fn(w.gsInstances[gsID], w, w.gsEntities[gsID])
	}

	w.diag.StageEnd(w.id, s, time.Since(start))
}

// finalizeStep returns destroyed slots to the allocator and advances the
// event bus so this step's events become readable next step.
func (w *World) finalizeStep() {
	for _, h := range w.destroyed {
		if err := globalAllocator.freeHandle(h); err != nil {
			w.log.Warn("entity slot free failed", zap.Error(err))
		}
	}
	w.destroyed = w.destroyed[:0]
	w.events.Advance()
}

// teardown destroys every entity and global-system instance. Called by the
// entity system when the world itself is destroyed at a step boundary.
func (w *World) teardown() {
	var handles []EntityHandle
	w.entities.Ascend(func(entry worldEntry) bool {
		handles = append(handles, entry.h)
		return true
	})
	w.entities.Clear(false)
	for _, h := range handles {
		if err := globalAllocator.freeHandle(h); err != nil {
			w.log.Warn("entity slot free failed during teardown", zap.Error(err))
		}
	}
	for i := range w.gsInstances {
		w.gsInstances[i] = nil
	}
}
