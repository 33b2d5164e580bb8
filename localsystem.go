package staged

// LocalSystemID is the dense class ID of a local system. IDs are assigned
// during Initialize in topological order of the declared Before/After edges,
// so sorting systems by ID yields a valid execution order.
type LocalSystemID uint32

// InvalidLocalSystemID is never assigned to a registered class.
const InvalidLocalSystemID = ^LocalSystemID(0)

// LocalSystemFn is a per-entity stage callback. indices holds the positions
// of the system's declared dependencies within dgs, in declaration order;
// absent optional dependencies are InvalidDataGroupIndex. The indices are
// pairwise distinct, so the callback may mutate each referenced data group
// freely.
type LocalSystemFn func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup)

// Dependency declares a data group a system operates on, by class name.
// Names resolve to IDs during Initialize.
type Dependency struct {
	DataGroup string
	Optional  bool
}

// Required declares a mandatory data-group dependency.
func Required(name string) Dependency {
	return Dependency{DataGroup: name}
}

// Opt declares an optional data-group dependency. The callback receives
// InvalidDataGroupIndex when the entity does not hold the data group.
func Opt(name string) Dependency {
	return Dependency{DataGroup: name, Optional: true}
}

// StageBinding attaches a callback to one stage of a local system.
type StageBinding struct {
	Stage StageID
	Fn    LocalSystemFn
}

// LocalSystemDesc describes a local-system class for registration.
type LocalSystemDesc struct {
	// Name is the class name, unique among local systems.
	Name string
	// Dependencies are the data groups passed to every stage callback, in
	// this order.
	Dependencies []Dependency
	// Stages binds callbacks to stage numbers.
	Stages []StageBinding
	// Before and After name local systems this one must precede or follow.
	// Names that are not registered are ignored.
	Before []string
	After  []string
}

type resolvedDep struct {
	id       DataGroupID
	optional bool
}

type localSystemEntry struct {
	name    string
	nameCRC uint32
	id      LocalSystemID
	deps    []resolvedDep
	fns     [StageCount]LocalSystemFn
	before  []string
	after   []string
}

// RegisterLocalSystem queues a local-system class for registration. Call from
// package init functions, before Initialize.
func RegisterLocalSystem(desc LocalSystemDesc) {
	globalRegistries.queueLocalSystem(desc)
}

// LocalSystemIDByName resolves a local-system class ID from its registered
// name.
func LocalSystemIDByName(name string) (LocalSystemID, bool) {
	return globalRegistries.localSystemIDByName(name)
}

// LocalSystemIDByCRC resolves a local-system class ID from its name CRC.
func LocalSystemIDByCRC(crc uint32) (LocalSystemID, bool) {
	return globalRegistries.localSystemIDByCRC(crc)
}
