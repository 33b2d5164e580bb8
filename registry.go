package staged

import (
	"fmt"
	"hash/crc32"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
)

// NameCRC computes the stable long-term identity of a class name.
func NameCRC(name string) uint32 {
	return crc32.ChecksumIEEE([]byte(name))
}

const (
	registryOpen uint32 = iota
	registryInitializing
	registryFrozen
)

// registrySet holds the three class registries. Registration queues fill
// before Initialize; Initialize drains them in dependency order (data groups,
// then local systems, then global systems), computes CRCs and IDs, and
// freezes everything. After the freeze all reads are lock-free.
type registrySet struct {
	mu    sync.Mutex
	state atomic.Uint32

	pendingDG []dataGroupEntry
	pendingLS []LocalSystemDesc
	pendingGS []pendingGlobalSystem

	dataGroups    []dataGroupEntry
	localSystems  []localSystemEntry
	globalSystems []globalSystemEntry

	dgByType map[reflect.Type]DataGroupID
	dgByName map[string]DataGroupID
	dgByCRC  map[uint32]DataGroupID
	lsByName map[string]LocalSystemID
	lsByCRC  map[uint32]LocalSystemID
	gsByType map[reflect.Type]GlobalSystemID
	gsByName map[string]GlobalSystemID
	gsByCRC  map[uint32]GlobalSystemID
}

var globalRegistries = &registrySet{}

// Initialize drains the registration queues, assigns class IDs, and freezes
// the registries. It is idempotent once complete; a call that overlaps an
// in-flight initialization returns ErrAlreadyInitialized. Registration
// defects (duplicate names, unresolvable or duplicate dependencies, cyclic
// Before/After edges) are programmer errors and panic.
func Initialize() error {
	return globalRegistries.initialize()
}

// Initialized reports whether Initialize has completed.
func Initialized() bool {
	return globalRegistries.state.Load() == registryFrozen
}

type pendingGlobalSystem struct {
	desc GlobalSystemDesc
	typ  reflect.Type
}

func (r *registrySet) queueDataGroup(desc DataGroupDesc, typ reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Load() != registryOpen {
		panic(fmt.Errorf("%w: data group %q registered after Initialize", ErrAlreadyInitialized, desc.Name))
	}
	r.pendingDG = append(r.pendingDG, dataGroupEntry{DataGroupDesc: desc, typ: typ})
}

func (r *registrySet) queueLocalSystem(desc LocalSystemDesc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Load() != registryOpen {
		panic(fmt.Errorf("%w: local system %q registered after Initialize", ErrAlreadyInitialized, desc.Name))
	}
	r.pendingLS = append(r.pendingLS, desc)
}

func (r *registrySet) queueGlobalSystem(desc GlobalSystemDesc, typ reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Load() != registryOpen {
		panic(fmt.Errorf("%w: global system %q registered after Initialize", ErrAlreadyInitialized, desc.Name))
	}
	r.pendingGS = append(r.pendingGS, pendingGlobalSystem{desc: desc, typ: typ})
}

func (r *registrySet) initialize() error {
	if !r.state.CompareAndSwap(registryOpen, registryInitializing) {
		if r.state.Load() == registryFrozen {
			return nil
		}
		return ErrAlreadyInitialized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.initDataGroups()
	r.initLocalSystems()
	r.initGlobalSystems()

	r.pendingDG, r.pendingLS, r.pendingGS = nil, nil, nil
	r.state.Store(registryFrozen)
	return nil
}

// initDataGroups assigns data-group IDs in registration order; data groups
// carry no ordering constraints among themselves.
func (r *registrySet) initDataGroups() {
	r.dgByType = make(map[reflect.Type]DataGroupID, len(r.pendingDG))
	r.dgByName = make(map[string]DataGroupID, len(r.pendingDG))
	r.dgByCRC = make(map[uint32]DataGroupID, len(r.pendingDG))

	for _, entry := range r.pendingDG {
		if _, dup := r.dgByName[entry.Name]; dup {
			panic(fmt.Errorf("%w: data group %q", ErrDuplicateName, entry.Name))
		}
		entry.id = DataGroupID(len(r.dataGroups))
		entry.nameCRC = NameCRC(entry.Name)
		r.dataGroups = append(r.dataGroups, entry)
		r.dgByType[entry.typ] = entry.id
		r.dgByName[entry.Name] = entry.id
		r.dgByCRC[entry.nameCRC] = entry.id
	}
}

func (r *registrySet) initLocalSystems() {
	n := len(r.pendingLS)
	entries := make([]localSystemEntry, n)
	names := make([]string, n)
	crcs := make([]uint32, n)
	before := make([][]string, n)
	after := make([][]string, n)

	seen := make(map[string]struct{}, n)
	for i, desc := range r.pendingLS {
		if _, dup := seen[desc.Name]; dup {
			panic(fmt.Errorf("%w: local system %q", ErrDuplicateName, desc.Name))
		}
		seen[desc.Name] = struct{}{}

		e := localSystemEntry{
			name:    desc.Name,
			nameCRC: NameCRC(desc.Name),
			deps:    r.resolveDeps(desc.Name, desc.Dependencies),
			before:  desc.Before,
			after:   desc.After,
		}
		for _, b := range desc.Stages {
			e.fns[b.Stage] = b.Fn
		}
		entries[i] = e
		names[i], crcs[i], before[i], after[i] = desc.Name, e.nameCRC, desc.Before, desc.After
	}

	ids, err := assignTopoIDs(names, crcs, before, after)
	if err != nil {
		panic(fmt.Errorf("local systems: %w", err))
	}

	r.localSystems = make([]localSystemEntry, n)
	r.lsByName = make(map[string]LocalSystemID, n)
	r.lsByCRC = make(map[uint32]LocalSystemID, n)
	for i := range entries {
		entries[i].id = LocalSystemID(ids[i])
		r.localSystems[ids[i]] = entries[i]
		r.lsByName[entries[i].name] = entries[i].id
		r.lsByCRC[entries[i].nameCRC] = entries[i].id
	}
}

func (r *registrySet) initGlobalSystems() {
	n := len(r.pendingGS)
	entries := make([]globalSystemEntry, n)
	names := make([]string, n)
	crcs := make([]uint32, n)
	before := make([][]string, n)
	after := make([][]string, n)

	seen := make(map[string]struct{}, n)
	for i, p := range r.pendingGS {
		desc := p.desc
		if _, dup := seen[desc.Name]; dup {
			panic(fmt.Errorf("%w: global system %q", ErrDuplicateName, desc.Name))
		}
		seen[desc.Name] = struct{}{}

		e := globalSystemEntry{
			name:     desc.Name,
			nameCRC:  NameCRC(desc.Name),
			deps:     r.resolveDeps(desc.Name, desc.Dependencies),
			before:   desc.Before,
			after:    desc.After,
			factory:  desc.Factory,
			mode:     desc.Mode,
			lifetime: desc.Lifetime,
			typ:      p.typ,
		}
		for _, b := range desc.Stages {
			e.fns[b.Stage] = b.Fn
		}
		entries[i] = e
		names[i], crcs[i], before[i], after[i] = desc.Name, e.nameCRC, desc.Before, desc.After
	}

	ids, err := assignTopoIDs(names, crcs, before, after)
	if err != nil {
		panic(fmt.Errorf("global systems: %w", err))
	}

	r.globalSystems = make([]globalSystemEntry, n)
	r.gsByType = make(map[reflect.Type]GlobalSystemID, n)
	r.gsByName = make(map[string]GlobalSystemID, n)
	r.gsByCRC = make(map[uint32]GlobalSystemID, n)
	for i := range entries {
		entries[i].id = GlobalSystemID(ids[i])
		r.globalSystems[ids[i]] = entries[i]
		r.gsByType[entries[i].typ] = entries[i].id
		r.gsByName[entries[i].name] = entries[i].id
		r.gsByCRC[entries[i].nameCRC] = entries[i].id
	}
}

// resolveDeps maps dependency names to data-group IDs. Dependencies must name
// registered data groups, and a system may declare each data group at most
// once, required or optional.
func (r *registrySet) resolveDeps(owner string, deps []Dependency) []resolvedDep {
	if len(deps) == 0 {
		return nil
	}
	out := make([]resolvedDep, 0, len(deps))
	seen := make(map[DataGroupID]struct{}, len(deps))
	for _, d := range deps {
		id, ok := r.dgByName[d.DataGroup]
		if !ok {
			panic(fmt.Errorf("%w: system %q depends on %q", ErrMissingDependency, owner, d.DataGroup))
		}
		if _, dup := seen[id]; dup {
			panic(fmt.Errorf("%w: system %q declares %q twice", ErrDuplicateDependency, owner, d.DataGroup))
		}
		seen[id] = struct{}{}
		out = append(out, resolvedDep{id: id, optional: d.Optional})
	}
	return out
}

// assignTopoIDs orders entries by their Before/After constraints with a
// layered Kahn sort and returns each entry's position in the linear order.
// Within a layer, entries are ordered by name CRC so IDs are deterministic
// across runs. Edges naming unregistered entries are ignored.
func assignTopoIDs(names []string, crcs []uint32, before, after [][]string) ([]int, error) {
	n := len(names)
	idxByName := make(map[string]int, n)
	for i, name := range names {
		idxByName[name] = i
	}

	outgoing := make([]map[int]struct{}, n)
	inDegree := make([]int, n)
	addEdge := func(a, b int) {
		if outgoing[a] == nil {
			outgoing[a] = make(map[int]struct{})
		}
		if _, dup := outgoing[a][b]; !dup {
			outgoing[a][b] = struct{}{}
			inDegree[b]++
		}
	}
	for i := range names {
		for _, target := range before[i] {
			if j, ok := idxByName[target]; ok {
				addEdge(i, j)
			}
		}
		for _, dep := range after[i] {
			if j, ok := idxByName[dep]; ok {
				addEdge(j, i)
			}
		}
	}

	byCRC := func(layer []int) {
		sort.Slice(layer, func(a, b int) bool { return crcs[layer[a]] < crcs[layer[b]] })
	}

	var ready []int
	for i := range names {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	byCRC(ready)

	ids := make([]int, n)
	assigned := 0
	for len(ready) > 0 {
		var next []int
		for _, cur := range ready {
			ids[cur] = assigned
			assigned++
			for neigh := range outgoing[cur] {
				inDegree[neigh]--
				if inDegree[neigh] == 0 {
					next = append(next, neigh)
				}
			}
		}
		byCRC(next)
		ready = next
	}

	if assigned != n {
		return nil, ErrCyclicDependencies
	}
	return ids, nil
}

// Lookup helpers. All require the registries to be frozen.

func (r *registrySet) requireFrozen() {
	if r.state.Load() != registryFrozen {
		panic(ErrNotInitialized)
	}
}

func (r *registrySet) dataGroupIDByType(typ reflect.Type) DataGroupID {
	r.requireFrozen()
	id, ok := r.dgByType[typ]
	if !ok {
		panic(fmt.Errorf("data group type %v was never registered", typ))
	}
	return id
}

func (r *registrySet) dataGroupIDByName(name string) (DataGroupID, bool) {
	r.requireFrozen()
	id, ok := r.dgByName[name]
	return id, ok
}

func (r *registrySet) dataGroupIDByCRC(crc uint32) (DataGroupID, bool) {
	r.requireFrozen()
	id, ok := r.dgByCRC[crc]
	return id, ok
}

func (r *registrySet) localSystemIDByName(name string) (LocalSystemID, bool) {
	r.requireFrozen()
	id, ok := r.lsByName[name]
	return id, ok
}

func (r *registrySet) localSystemIDByCRC(crc uint32) (LocalSystemID, bool) {
	r.requireFrozen()
	id, ok := r.lsByCRC[crc]
	return id, ok
}

func (r *registrySet) globalSystemIDByType(typ reflect.Type) GlobalSystemID {
	r.requireFrozen()
	id, ok := r.gsByType[typ]
	if !ok {
		panic(fmt.Errorf("global system type %v was never registered", typ))
	}
	return id
}

func (r *registrySet) globalSystemIDByName(name string) (GlobalSystemID, bool) {
	r.requireFrozen()
	id, ok := r.gsByName[name]
	return id, ok
}

func (r *registrySet) dgEntry(id DataGroupID) *dataGroupEntry {
	return &r.dataGroups[id]
}

func (r *registrySet) lsEntry(id LocalSystemID) *localSystemEntry {
	return &r.localSystems[id]
}

func (r *registrySet) gsEntry(id GlobalSystemID) *globalSystemEntry {
	return &r.globalSystems[id]
}

func (r *registrySet) dataGroupCount() int    { return len(r.dataGroups) }
func (r *registrySet) localSystemCount() int  { return len(r.localSystems) }
func (r *registrySet) globalSystemCount() int { return len(r.globalSystems) }
