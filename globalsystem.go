package staged

import "reflect"

// GlobalSystemID is the dense class ID of a global system, assigned during
// Initialize in topological order of the declared Before/After edges.
type GlobalSystemID uint32

// InvalidGlobalSystemID is never assigned to a registered class.
const InvalidGlobalSystemID = ^GlobalSystemID(0)

// GlobalSystem is the per-world state of a global-system class. Instances are
// created by the class factory per the declared lifetime and initialized per
// the declared InitMode.
type GlobalSystem interface {
	Init(arg any)
}

// GlobalSystemFactory produces a fresh instance of a global-system class.
type GlobalSystemFactory func() GlobalSystem

// GlobalSystemFn is a per-world stage callback. gs is the world's instance of
// the class (the callback downcasts it); registered holds the live entities
// whose spawn description installed this global system.
type GlobalSystemFn func(gs GlobalSystem, w *World, registered []EntityHandle)

// Lifetime controls when a world creates and destroys a global-system
// instance.
type Lifetime uint8

const (
	// WhenRequired reference-counts the entities that install the system:
	// created on first use in a world, destroyed when the count returns to
	// zero.
	WhenRequired Lifetime = iota
	// AlwaysLive creates the instance at world creation and destroys it at
	// world destruction.
	AlwaysLive
	// Manual leaves creation and destruction to explicit LoadGlobalSystem and
	// UnloadGlobalSystem calls.
	Manual
)

func (l Lifetime) String() string {
	switch l {
	case WhenRequired:
		return "WhenRequired"
	case AlwaysLive:
		return "AlwaysLive"
	case Manual:
		return "Manual"
	default:
		return "Unknown"
	}
}

// GSStageBinding attaches a callback to one stage of a global system.
type GSStageBinding struct {
	Stage StageID
	Fn    GlobalSystemFn
}

// GlobalSystemDesc describes a global-system class for registration.
type GlobalSystemDesc struct {
	// Name is the class name, unique among global systems.
	Name string
	// Dependencies are the data groups entities must (or may) hold to
	// register with this system.
	Dependencies []Dependency
	// Stages binds callbacks to stage numbers.
	Stages []GSStageBinding
	// Before and After name global systems this one must precede or follow.
	Before []string
	After  []string
	// Factory produces per-world instances.
	Factory GlobalSystemFactory
	// Mode declares how instances are initialized after the factory runs.
	Mode InitMode
	// Lifetime controls instance creation and destruction.
	Lifetime Lifetime
}

type globalSystemEntry struct {
	name     string
	nameCRC  uint32
	id       GlobalSystemID
	deps     []resolvedDep
	fns      [StageCount]GlobalSystemFn
	before   []string
	after    []string
	factory  GlobalSystemFactory
	mode     InitMode
	lifetime Lifetime
	typ      reflect.Type
}

// RegisterGlobalSystem queues a global-system class for registration. T is
// the concrete type produced by the factory. Call from package init
// functions, before Initialize.
func RegisterGlobalSystem[T GlobalSystem](desc GlobalSystemDesc) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	globalRegistries.queueGlobalSystem(desc, typ)
}

// GlobalSystemIDFor returns the class ID assigned to the global system
// registered with concrete type T. Panics before Initialize or for an
// unregistered type.
func GlobalSystemIDFor[T GlobalSystem]() GlobalSystemID {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return globalRegistries.globalSystemIDByType(typ)
}

// GlobalSystemIDByName resolves a global-system class ID from its registered
// name.
func GlobalSystemIDByName(name string) (GlobalSystemID, bool) {
	return globalRegistries.globalSystemIDByName(name)
}
