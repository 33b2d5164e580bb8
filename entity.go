package staged

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/oriumgames/staged/internal/bitset"
)

const stageBitmapWords = StageCount / 64

// dispatchEntry is one precomputed stage callback of an entity: the function
// and the positions of its arguments within the entity's data-group vector.
// args is a subslice of the entity's flat argIndices vector.
type dispatchEntry struct {
	fn   LocalSystemFn
	args []DataGroupIndex
}

// Entity is a composition of data groups and systems, materialized from a
// validated spawn description. Its data groups are stored sorted by class ID,
// its per-stage dispatch tables are precomputed at materialization, and it
// never changes shape afterwards.
type Entity struct {
	id        EntityID
	name      string
	debugInfo string
	handle    EntityHandle

	dataGroups []DataGroup
	dgIDs      []DataGroupID // parallel to dataGroups, strictly ascending

	localSystems  mapset.Set[LocalSystemID]
	globalSystems mapset.Set[GlobalSystemID]

	stageEnabled  *bitset.BitSet
	stageDispatch map[StageID][]dispatchEntry
	argIndices    []DataGroupIndex

	// spatial is non-nil iff the entity holds the Transform data group.
	spatial *spatialNode
}

// newEntity materializes a validated spawn description in one pass: create
// and initialize the data groups sorted by class ID, then walk the installed
// local systems in ascending (topological) ID order building the per-stage
// dispatch tables and the flat argument-index vector.
func newEntity(id EntityID, handle EntityHandle, sd *SpawnDescription) *Entity {
	reg := globalRegistries

	dgIDs := sd.sortedDataGroupIDs()
	dataGroups := make([]DataGroup, len(dgIDs))
	posOf := make(map[DataGroupID]DataGroupIndex, len(dgIDs))
	for pos, dgID := range dgIDs {
		entry := reg.dgEntry(dgID)
		dg := entry.Factory()
		initDataGroup(entry, dg, sd.dataGroups[dgID])
		dataGroups[pos] = dg
		posOf[dgID] = DataGroupIndex(pos)
	}

	sortedLS := sortedSet(sd.localSystems)

	// Size the flat index vector up front so dispatch subslices stay valid.
	totalArgs := 0
	for _, lsID := range sortedLS {
		entry := reg.lsEntry(lsID)
		for s := 0; s < StageCount; s++ {
			if entry.fns[s] != nil {
				totalArgs += len(entry.deps)
			}
		}
	}

	e := &Entity{
		id:            id,
		name:          sd.name,
		debugInfo:     sd.debugInfo,
		handle:        handle,
		dataGroups:    dataGroups,
		dgIDs:         dgIDs,
		localSystems:  sd.localSystems,
		globalSystems: sd.globalSystems,
		stageEnabled:  bitset.New(stageBitmapWords),
		stageDispatch: make(map[StageID][]dispatchEntry),
		argIndices:    make([]DataGroupIndex, 0, totalArgs),
	}

	for _, lsID := range sortedLS {
		entry := reg.lsEntry(lsID)
		for s := 0; s < StageCount; s++ {
			fn := entry.fns[s]
			if fn == nil {
				continue
			}
			stage := StageID(s)
			e.stageEnabled.Set(s)

			start := len(e.argIndices)
			for _, dep := range entry.deps {
				pos, present := posOf[dep.id]
				if !present {
					pos = InvalidDataGroupIndex
				}
				e.argIndices = append(e.argIndices, pos)
			}
			e.stageDispatch[stage] = append(e.stageDispatch[stage], dispatchEntry{
				fn:   fn,
				args: e.argIndices[start:len(e.argIndices):len(e.argIndices)],
			})
		}
	}

	if _, spatial := posOf[transformID()]; spatial {
		e.spatial = newSpatialNode(e)
	}
	return e
}

// initDataGroup runs a data group's Init per the slot shape from the spawn
// description. Validate has already rejected mismatched or uninitialized
// slots.
func initDataGroup(entry *dataGroupEntry, dg DataGroup, arg InitArg) {
	switch arg.kind {
	case kindUninitialized:
		panic(fmt.Errorf("uninitialized data group %q: %s", entry.Name, arg.reason))
	case kindNoInit:
	case kindNoArg:
		dg.Init(nil)
	case kindArg, kindOptionalArg:
		dg.Init(arg.payload)
	}
}

// ID returns the entity's monotonic global identifier.
func (e *Entity) ID() EntityID { return e.id }

// Name returns the entity's display name.
func (e *Entity) Name() string { return e.name }

// DebugInfo returns the provenance string from the spawn description.
func (e *Entity) DebugInfo() string { return e.debugInfo }

// Handle returns the entity's generational handle.
func (e *Entity) Handle() EntityHandle { return e.handle }

// DataGroupByID binary-searches the sorted data-group vector.
func (e *Entity) DataGroupByID(id DataGroupID) (DataGroup, bool) {
	pos, found := sort.Find(len(e.dgIDs), func(i int) int {
		switch {
		case id < e.dgIDs[i]:
			return -1
		case id > e.dgIDs[i]:
			return 1
		default:
			return 0
		}
	})
	if !found {
		return nil, false
	}
	return e.dataGroups[pos], true
}

// GetDataGroup returns the entity's instance of the data group registered
// with concrete type T, or nil.
func GetDataGroup[T any](e *Entity) *T {
	dg, ok := e.DataGroupByID(DataGroupIDFor[T]())
	if !ok {
		return nil
	}
	return dg.(*T)
}

// HasLocalSystem reports whether the entity installs the local system.
func (e *Entity) HasLocalSystem(id LocalSystemID) bool {
	return e.localSystems.Contains(id)
}

// HasGlobalSystem reports whether the entity requests the global system.
func (e *Entity) HasGlobalSystem(id GlobalSystemID) bool {
	return e.globalSystems.Contains(id)
}

// StageEnabled reports whether any installed local system has a callback for
// the stage.
func (e *Entity) StageEnabled(s StageID) bool {
	return e.stageEnabled.Has(int(s))
}

// IsSpatial reports whether the entity participates in the parent/child
// hierarchy (holds the Transform data group).
func (e *Entity) IsSpatial() bool { return e.spatial != nil }

// IsRoot reports whether a spatial entity has no parent. False for
// non-spatial entities.
func (e *Entity) IsRoot() bool {
	return e.spatial != nil && !e.spatial.parent.Valid()
}

// shouldRunInStage decides whether the world schedules this entity for a
// stage. Spatial non-roots are never scheduled directly; they are reached by
// DFS from their root.
func (e *Entity) shouldRunInStage(s StageID) bool {
	if e.spatial == nil {
		return e.stageEnabled.Has(int(s))
	}
	if !e.IsRoot() {
		return false
	}
	return e.spatial.stageCounts[s].Load() > 0
}

// runStage invokes the entity's local-system callbacks for one stage, in
// ascending LocalSystemID order. No-op if the stage is not enabled.
func (e *Entity) runStage(w *World, s StageID) {
	if !e.stageEnabled.Has(int(s)) {
		return
	}
	for _, d := range e.stageDispatch[s] {
		assertDistinctArgs(d.args, len(e.dataGroups))
		d.fn(w, e.id, d.args, e.dataGroups)
	}
}

// assertDistinctArgs checks the dispatch precondition: argument indices are
// pairwise distinct and in range, so a callback may mutate every referenced
// data group without aliasing another argument. Violations indicate a
// materialization bug.
func assertDistinctArgs(args []DataGroupIndex, n int) {
	for i, a := range args {
		if a == InvalidDataGroupIndex {
			continue
		}
		if int(a) >= n {
			panic(fmt.Errorf("dispatch argument index %d out of range (%d data groups)", a, n))
		}
		for _, b := range args[:i] {
			if a == b {
				panic(fmt.Errorf("dispatch argument index %d duplicated", a))
			}
		}
	}
}

// String renders the entity with registry-resolved class names, for debug
// output.
func (e *Entity) String() string {
	reg := globalRegistries
	var b strings.Builder
	fmt.Fprintf(&b, "Entity(%d %q", e.id, e.name)
	if e.debugInfo != "" {
		fmt.Fprintf(&b, " [%s]", e.debugInfo)
	}
	b.WriteString(" dataGroups=[")
	for i, id := range e.dgIDs {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(reg.dgEntry(id).Name)
	}
	b.WriteString("] localSystems=[")
	for i, id := range sortedSet(e.localSystems) {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(reg.lsEntry(id).name)
	}
	b.WriteString("] stages=[")
	first := true
	e.stageEnabled.ForEach(func(s int) bool {
		if !first {
			b.WriteString(" ")
		}
		first = false
		fmt.Fprintf(&b, "%d", s)
		return true
	})
	b.WriteString("])")
	return b.String()
}
