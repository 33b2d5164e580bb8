package staged

import "sync"

// Transform is the well-known data group that makes an entity spatial: an
// entity participates in the parent/child hierarchy iff it holds Transform.
// It carries the entity's local transform; the world transform composes the
// cached parent world transform with it.
type Transform struct {
	Local Affine

	// cachedParentWorld is refreshed by render collection, which walks the
	// entity's ancestors; identity for roots.
	cachedParentWorld Affine
}

// Init accepts an optional *Transform payload; nil leaves the identity
// transform in place.
func (t *Transform) Init(arg any) {
	if arg == nil {
		return
	}
	t.Local = arg.(*Transform).Local
}

// WorldTransform returns the entity's transform in world space.
func (t *Transform) WorldTransform() Affine {
	return t.cachedParentWorld.Mul(t.Local)
}

func init() {
	RegisterDataGroup[Transform](DataGroupDesc{
		Name: "Transform",
		Mode: InitOptionalArg,
		Factory: func() DataGroup {
			return &Transform{
				Local:             AffineIdentity(),
				cachedParentWorld: AffineIdentity(),
			}
		},
	})
}

// transformID resolves the Transform class ID once, after Initialize.
var transformID = sync.OnceValue(func() DataGroupID {
	return DataGroupIDFor[Transform]()
})
