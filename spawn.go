package staged

import (
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
)

type initKind uint8

const (
	kindUninitialized initKind = iota
	kindNoInit
	kindNoArg
	kindArg
	kindOptionalArg
)

// InitArg is the payload slot for one data group in a spawn description. Its
// shape must match the data group's declared InitMode; Validate enforces
// this.
type InitArg struct {
	kind    initKind
	payload any
	reason  string
}

// NoInit declares that the data group needs no initialization.
func NoInit() InitArg { return InitArg{kind: kindNoInit} }

// NoArg declares initialization without a payload.
func NoArg() InitArg { return InitArg{kind: kindNoArg} }

// Arg declares initialization with a mandatory payload.
func Arg(v any) InitArg { return InitArg{kind: kindArg, payload: v} }

// OptionalArg declares initialization with a payload that may be nil.
func OptionalArg(v any) InitArg { return InitArg{kind: kindOptionalArg, payload: v} }

// uninitialized marks a slot inserted by a prepare helper that still awaits a
// payload from the caller.
func uninitialized(reason string) InitArg {
	return InitArg{kind: kindUninitialized, reason: reason}
}

// SpawnDescription specifies an entity to be materialized: its data groups
// with init payloads, the systems it installs, and its place in the spatial
// hierarchy. Build one, hand it to World.CreateEntity, and do not reuse it.
type SpawnDescription struct {
	name          string
	debugInfo     string
	dataGroups    map[DataGroupID]InitArg
	localSystems  mapset.Set[LocalSystemID]
	globalSystems mapset.Set[GlobalSystemID]
	parent        EntityID
	children      mapset.Set[EntityID]
}

// NewSpawnDescription returns an empty spawn description.
func NewSpawnDescription() *SpawnDescription {
	return &SpawnDescription{
		dataGroups:    make(map[DataGroupID]InitArg),
		localSystems:  mapset.NewThreadUnsafeSet[LocalSystemID](),
		globalSystems: mapset.NewThreadUnsafeSet[GlobalSystemID](),
		children:      mapset.NewThreadUnsafeSet[EntityID](),
	}
}

// SetName sets the entity's display name.
func (sd *SpawnDescription) SetName(name string) *SpawnDescription {
	sd.name = name
	return sd
}

// Name returns the entity's display name.
func (sd *SpawnDescription) Name() string { return sd.name }

// SetDebugInfo records free-form provenance (e.g. which system spawned this
// entity).
func (sd *SpawnDescription) SetDebugInfo(info string) *SpawnDescription {
	sd.debugInfo = info
	return sd
}

// DebugInfo returns the recorded provenance string.
func (sd *SpawnDescription) DebugInfo() string { return sd.debugInfo }

// AddDataGroupByID sets the init payload for a data-group class, replacing
// any previous slot (including Uninitialized slots from prepare helpers).
func (sd *SpawnDescription) AddDataGroupByID(id DataGroupID, arg InitArg) *SpawnDescription {
	sd.dataGroups[id] = arg
	return sd
}

// AddDataGroup sets the init payload for the data group registered with
// concrete type T.
func AddDataGroup[T any](sd *SpawnDescription, arg InitArg) *SpawnDescription {
	return sd.AddDataGroupByID(DataGroupIDFor[T](), arg)
}

// HasDataGroup reports whether a slot exists for the class.
func (sd *SpawnDescription) HasDataGroup(id DataGroupID) bool {
	_, ok := sd.dataGroups[id]
	return ok
}

// AddLocalSystemByID installs a local system and prepares its required
// data-group dependencies: each absent required dependency gets a default
// slot per its init mode, with Arg-style slots left Uninitialized so the
// caller is forced to supply a payload before Validate passes.
func (sd *SpawnDescription) AddLocalSystemByID(id LocalSystemID) *SpawnDescription {
	if !sd.localSystems.Add(id) {
		return sd
	}
	entry := globalRegistries.lsEntry(id)
	sd.prepareDeps(entry.name, entry.deps)
	return sd
}

// AddLocalSystem installs a local system by its registered name.
func (sd *SpawnDescription) AddLocalSystem(name string) *SpawnDescription {
	id, ok := LocalSystemIDByName(name)
	if !ok {
		panic(fmt.Errorf("local system %q was never registered", name))
	}
	return sd.AddLocalSystemByID(id)
}

// AddGlobalSystemByID requests a global system for this entity and prepares
// its required data-group dependencies like AddLocalSystemByID does.
func (sd *SpawnDescription) AddGlobalSystemByID(id GlobalSystemID) *SpawnDescription {
	if !sd.globalSystems.Add(id) {
		return sd
	}
	entry := globalRegistries.gsEntry(id)
	sd.prepareDeps(entry.name, entry.deps)
	return sd
}

// AddGlobalSystem requests the global system registered with concrete type T.
func AddGlobalSystem[T GlobalSystem](sd *SpawnDescription) *SpawnDescription {
	return sd.AddGlobalSystemByID(GlobalSystemIDFor[T]())
}

func (sd *SpawnDescription) prepareDeps(owner string, deps []resolvedDep) {
	for _, dep := range deps {
		if dep.optional {
			continue
		}
		if _, present := sd.dataGroups[dep.id]; present {
			continue
		}
		entry := globalRegistries.dgEntry(dep.id)
		switch entry.Mode {
		case InitNone:
			sd.dataGroups[dep.id] = NoInit()
		case InitNoArg:
			sd.dataGroups[dep.id] = NoArg()
		case InitArg:
			sd.dataGroups[dep.id] = uninitialized(
				fmt.Sprintf("required by system %q", owner))
		case InitOptionalArg:
			sd.dataGroups[dep.id] = OptionalArg(nil)
		}
	}
}

// SetParent sets the spatial parent the entity attaches to at
// materialization. InvalidEntityID means no parent.
func (sd *SpawnDescription) SetParent(parent EntityID) *SpawnDescription {
	sd.parent = parent
	return sd
}

// Parent returns the requested spatial parent.
func (sd *SpawnDescription) Parent() EntityID { return sd.parent }

// AddChild requests that an existing entity be reparented under this one at
// materialization.
func (sd *SpawnDescription) AddChild(child EntityID) *SpawnDescription {
	sd.children.Add(child)
	return sd
}

// sortedDataGroupIDs returns the slot keys in ascending class-ID order.
func (sd *SpawnDescription) sortedDataGroupIDs() []DataGroupID {
	ids := make([]DataGroupID, 0, len(sd.dataGroups))
	for id := range sd.dataGroups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Validate checks the description against the frozen registries. It must
// pass before materialization. The data-group count bound is checked first,
// then slot shapes, then system dependencies.
func (sd *SpawnDescription) Validate() error {
	if len(sd.dataGroups) > MaxDataGroupIndex {
		return fmt.Errorf("%w: %d data groups (limit %d)",
			ErrTooManyDataGroups, len(sd.dataGroups), MaxDataGroupIndex)
	}

	reg := globalRegistries
	for _, id := range sd.sortedDataGroupIDs() {
		if int(id) >= reg.dataGroupCount() {
			return fmt.Errorf("%w: data group id %d", ErrMissingDependency, id)
		}
		entry := reg.dgEntry(id)
		arg := sd.dataGroups[id]
		if arg.kind == kindUninitialized {
			return fmt.Errorf("%w: %q (%s)", ErrUninitializedDataGroup, entry.Name, arg.reason)
		}
		if want := modeKind(entry.Mode); arg.kind != want {
			return fmt.Errorf("%w: %q expects %s", ErrInitModeMismatch, entry.Name, entry.Mode)
		}
	}

	for _, id := range sortedSet(sd.localSystems) {
		entry := reg.lsEntry(id)
		if err := sd.checkRequiredDeps(entry.name, entry.deps); err != nil {
			return err
		}
	}
	for _, id := range sortedSet(sd.globalSystems) {
		entry := reg.gsEntry(id)
		if err := sd.checkRequiredDeps(entry.name, entry.deps); err != nil {
			return err
		}
	}
	return nil
}

func (sd *SpawnDescription) checkRequiredDeps(owner string, deps []resolvedDep) error {
	for _, dep := range deps {
		if dep.optional {
			continue
		}
		if _, present := sd.dataGroups[dep.id]; !present {
			return fmt.Errorf("%w: system %q needs %q",
				ErrMissingRequiredDataGroup, owner, globalRegistries.dgEntry(dep.id).Name)
		}
	}
	return nil
}

func modeKind(m InitMode) initKind {
	switch m {
	case InitNone:
		return kindNoInit
	case InitNoArg:
		return kindNoArg
	case InitArg:
		return kindArg
	default:
		return kindOptionalArg
	}
}

func sortedSet[T ~uint32](s mapset.Set[T]) []T {
	out := s.ToSlice()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
