package staged

import (
	"fmt"
	"math"
	"reflect"
)

// DataGroupID is the dense class ID of a data group, assigned in registration
// order during Initialize. The name CRC is the long-term stable identity; the
// small integer is the short-term one.
type DataGroupID uint32

// InvalidDataGroupID is never assigned to a registered class.
const InvalidDataGroupID = ^DataGroupID(0)

// DataGroupIndex indexes into an entity's data-group vector. Its width bounds
// how many data groups a single entity may hold.
type DataGroupIndex uint16

// InvalidDataGroupIndex marks an absent optional dependency in a dispatch
// argument list.
const InvalidDataGroupIndex DataGroupIndex = math.MaxUint16

// MaxDataGroupIndex is the maximum number of data groups one entity may hold.
const MaxDataGroupIndex = int(InvalidDataGroupIndex) - 1

// InitMode declares how instances of a data group or global system class are
// initialized after their factory runs.
type InitMode uint8

const (
	// InitNone skips initialization entirely; the factory result is used
	// as-is.
	InitNone InitMode = iota
	// InitNoArg calls Init with a nil argument.
	InitNoArg
	// InitArg calls Init with a mandatory payload.
	InitArg
	// InitOptionalArg calls Init with a payload that may be nil.
	InitOptionalArg
)

func (m InitMode) String() string {
	switch m {
	case InitNone:
		return "NoInit"
	case InitNoArg:
		return "NoArg"
	case InitArg:
		return "Arg"
	case InitOptionalArg:
		return "OptionalArg"
	default:
		return fmt.Sprintf("InitMode(%d)", uint8(m))
	}
}

// DataGroup is a contiguous piece of entity state. Concrete data groups are
// pointer types registered through RegisterDataGroup; the runtime stores them
// erased and recovers the concrete type by assertion, which is O(1).
type DataGroup interface {
	// Init runs once at entity materialization with the payload from the
	// spawn description, shaped per the class's InitMode: nil for NoArg,
	// the payload for Arg, and possibly-nil for OptionalArg.
	Init(arg any)
}

// DataGroupFactory produces a fresh, default-valued instance of a data-group
// class.
type DataGroupFactory func() DataGroup

// DataGroupDesc describes a data-group class for registration.
type DataGroupDesc struct {
	// Name is the class name. It must be unique among data groups; its CRC32
	// is the stable long-term identity.
	Name string
	// Mode declares the initialization contract of the class.
	Mode InitMode
	// Factory produces instances.
	Factory DataGroupFactory
}

type dataGroupEntry struct {
	DataGroupDesc
	id      DataGroupID
	nameCRC uint32
	typ     reflect.Type
}

// RegisterDataGroup queues a data-group class for registration. T is the
// concrete type produced by the factory; it is recorded so DataGroupIDFor can
// resolve the class from the type. Call from package init functions, before
// Initialize.
func RegisterDataGroup[T any](desc DataGroupDesc) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	globalRegistries.queueDataGroup(desc, typ)
}

// DataGroupIDFor returns the class ID assigned to the data group registered
// with concrete type T. It panics if Initialize has not completed or T was
// never registered, both programmer errors.
func DataGroupIDFor[T any]() DataGroupID {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	return globalRegistries.dataGroupIDByType(typ)
}

// DataGroupIDByName resolves a data-group class ID from its registered name.
func DataGroupIDByName(name string) (DataGroupID, bool) {
	return globalRegistries.dataGroupIDByName(name)
}

// DataGroupIDByCRC resolves a data-group class ID from its name CRC. This is
// the lookup meant for long-term identifiers (asset files, wire formats).
func DataGroupIDByCRC(crc uint32) (DataGroupID, bool) {
	return globalRegistries.dataGroupIDByCRC(crc)
}

// DataGroupAt recovers the concrete data group at a dispatch argument index.
// It returns nil for InvalidDataGroupIndex, the encoding of an absent
// optional dependency.
func DataGroupAt[T any](dgs []DataGroup, idx DataGroupIndex) *T {
	if idx == InvalidDataGroupIndex {
		return nil
	}
	return dgs[idx].(*T)
}
