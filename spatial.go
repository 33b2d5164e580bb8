package staged

import "sync/atomic"

// spatialNode is the hierarchy record of a spatial entity. subtreeSize and
// stageCounts cover the whole subtree rooted here, including the node itself,
// so the world decides in O(1) whether a root needs scheduling for a stage.
// The per-stage counters are atomic so the render frontier can read them
// lock-free; subtreeSize is a plain field. Both are only written by the
// simulation driver at step boundaries.
type spatialNode struct {
	parent      EntityHandle
	children    []EntityHandle
	subtreeSize int64
	stageCounts [StageCount]atomic.Int64
}

func newSpatialNode(e *Entity) *spatialNode {
	n := &spatialNode{subtreeSize: 1}
	e.stageEnabled.ForEach(func(s int) bool {
		n.stageCounts[s].Store(1)
		return true
	})
	return n
}

// Parent returns the spatial parent handle of a spatial entity; the zero
// handle for roots and non-spatial entities.
func (e *Entity) Parent() EntityHandle {
	if e.spatial == nil {
		return EntityHandle{}
	}
	return e.spatial.parent
}

// Children returns the spatial children of the entity, in attach order. The
// returned slice must not be mutated.
func (e *Entity) Children() []EntityHandle {
	if e.spatial == nil {
		return nil
	}
	return e.spatial.children
}

// SubtreeSize returns the number of entities in the spatial subtree rooted at
// this entity, itself included. 0 for non-spatial entities.
func (e *Entity) SubtreeSize() int {
	if e.spatial == nil {
		return 0
	}
	return int(e.spatial.subtreeSize)
}

// SubtreeStageCount returns how many entities in the subtree, itself
// included, have the stage enabled.
func (e *Entity) SubtreeStageCount(s StageID) int {
	if e.spatial == nil {
		return 0
	}
	return int(e.spatial.stageCounts[s].Load())
}

// isDescendantOf walks ancestors of e looking for ancestor.
func (e *Entity) isDescendantOf(ancestor *Entity) bool {
	cur := e.Parent()
	for cur.Valid() {
		p := cur.Entity()
		if p == nil {
			return false
		}
		if p == ancestor {
			return true
		}
		cur = p.Parent()
	}
	return false
}

// attachParent makes parent the spatial parent of child, detaching child from
// its previous parent first. Both entities must be spatial. Attaching an
// entity to itself or to one of its descendants fails with
// ErrReparentingCycle and leaves the hierarchy untouched.
func attachParent(child, parent *Entity) error {
	if child == parent || parent.isDescendantOf(child) {
		return ErrReparentingCycle
	}

	detachParent(child)

	child.spatial.parent = parent.handle
	parent.spatial.children = append(parent.spatial.children, child.handle)

	// Walk up to the new root adding the child's cached subtree quantities.
	for cur := parent; cur != nil; cur = cur.Parent().Entity() {
		cur.spatial.subtreeSize += child.spatial.subtreeSize
		for s := 0; s < StageCount; s++ {
			if delta := child.spatial.stageCounts[s].Load(); delta != 0 {
				cur.spatial.stageCounts[s].Add(delta)
			}
		}
	}
	return nil
}

// detachParent removes child from its parent, subtracting the child's cached
// subtree quantities from every old ancestor. No-op for roots.
func detachParent(child *Entity) {
	parentHandle := child.spatial.parent
	if !parentHandle.Valid() {
		return
	}

	for cur := parentHandle.Entity(); cur != nil; cur = cur.Parent().Entity() {
		cur.spatial.subtreeSize -= child.spatial.subtreeSize
		for s := 0; s < StageCount; s++ {
			if delta := child.spatial.stageCounts[s].Load(); delta != 0 {
				cur.spatial.stageCounts[s].Add(-delta)
			}
		}
	}

	if parent := parentHandle.Entity(); parent != nil {
		siblings := parent.spatial.children
		for i, h := range siblings {
			if h == child.handle {
				parent.spatial.children = append(siblings[:i], siblings[i+1:]...)
				break
			}
		}
	}
	child.spatial.parent = EntityHandle{}
}

// runStageRecursive runs a stage over a spatial subtree with an iterative
// DFS. Parents always run before their descendants; siblings run in the
// order they appear in the children list.
func runStageRecursive(w *World, root *Entity, s StageID) {
	stack := make([]EntityHandle, 0, 16)
	stack = append(stack, root.handle)
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e := h.Entity()
		if e == nil {
			continue
		}
		e.runStage(w, s)
		// Push children reversed so the first child pops first.
		children := e.spatial.children
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
}

// collectSubtree appends the handles of every entity in the subtree rooted at
// root, root included, in DFS order.
func collectSubtree(root *Entity, out []EntityHandle) []EntityHandle {
	stack := []EntityHandle{root.handle}
	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		e := h.Entity()
		if e == nil {
			continue
		}
		out = append(out, h)
		if e.spatial != nil {
			stack = append(stack, e.spatial.children...)
		}
	}
	return out
}
