package staged

import "errors"

// Registration errors. These indicate programmer error detected at startup
// and are raised as panics from Initialize.
var (
	// ErrDuplicateName reports two classes registered under the same name
	// within one category.
	ErrDuplicateName = errors.New("duplicate class name")
	// ErrCyclicDependencies reports a cycle in the Before/After graph of a
	// system category.
	ErrCyclicDependencies = errors.New("cyclic dependencies")
	// ErrDuplicateDependency reports a system declaring the same data group
	// more than once in its dependency list.
	ErrDuplicateDependency = errors.New("duplicate data group dependency")
	// ErrMissingDependency reports a dependency on a data group name that was
	// never registered. Validate also returns it, rather than panicking, for a
	// spawn description slot whose data-group ID is not registered.
	ErrMissingDependency = errors.New("dependency on unregistered data group")
)

// Initialization errors.
var (
	// ErrAlreadyInitialized is returned when Initialize is entered while a
	// previous call is still in flight. Registration after Initialize has
	// started panics with an error wrapping it.
	ErrAlreadyInitialized = errors.New("already initialized")
	// ErrNotInitialized is returned from operations that require Initialize
	// to have completed.
	ErrNotInitialized = errors.New("not initialized")
)

// Spawn errors, reported from CreateEntity. They fail the single command and
// never poison the world.
var (
	// ErrMissingRequiredDataGroup reports a required dependency of an
	// installed system that is absent from the spawn description.
	ErrMissingRequiredDataGroup = errors.New("missing required data group")
	// ErrUninitializedDataGroup reports an Arg-style data group slot left
	// without a payload.
	ErrUninitializedDataGroup = errors.New("uninitialized data group")
	// ErrInitModeMismatch reports a payload whose shape does not match the
	// data group's declared init mode.
	ErrInitModeMismatch = errors.New("init mode mismatch")
	// ErrTooManyDataGroups reports a spawn description exceeding
	// MaxDataGroupIndex data groups.
	ErrTooManyDataGroups = errors.New("too many data groups")
	// ErrUnknownParent reports a spawn description referencing a parent
	// entity that does not exist at materialization time.
	ErrUnknownParent = errors.New("unknown parent entity")
)

// Structural errors. Raised from deferred command drains; they are logged and
// the offending command is skipped.
var (
	// ErrReparentingCycle reports reparenting an entity to itself or to one
	// of its descendants.
	ErrReparentingCycle = errors.New("reparenting would create a cycle")
	// ErrWorldNotFound reports an operation against a world ID that is not
	// live.
	ErrWorldNotFound = errors.New("world not found")
	// ErrEntityNotFound reports an operation against an entity ID that is not
	// present in the world.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrDoubleFree reports freeing an entity slot that is already free.
	ErrDoubleFree = errors.New("entity slot double free")
)

// Global system errors.
var (
	// ErrNotManualLifetime reports a manual load/unload call against a global
	// system whose lifetime is not Manual.
	ErrNotManualLifetime = errors.New("global system lifetime is not manual")
	// ErrStillRequired reports unloading a global system still required by at
	// least one live entity.
	ErrStillRequired = errors.New("global system still required by entities")
)
