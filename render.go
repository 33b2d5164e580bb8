package staged

import (
	"sync"
	"sync/atomic"
)

// ModelHandle and MaterialHandle are opaque references into the asset layer,
// which lives outside the core. 0 means "no asset".
type ModelHandle uint32
type MaterialHandle uint32

// MeshRenderer is the data group that makes an entity renderable.
type MeshRenderer struct {
	Model    ModelHandle
	Material MaterialHandle
}

func (m *MeshRenderer) Init(arg any) {
	*m = *arg.(*MeshRenderer)
}

// Camera holds the projection parameters shipped to the render frontier.
type Camera struct {
	FOVDegrees  float32
	AspectRatio float32
	Near, Far   float32
}

// CameraDG is the data group that makes an entity a camera.
type CameraDG struct {
	Camera Camera
}

func (c *CameraDG) Init(arg any) {
	*c = *arg.(*CameraDG)
}

// RenderProxy is one renderable gathered for a frame: which model to draw,
// with which material, where.
type RenderProxy struct {
	Model     ModelHandle
	Material  MaterialHandle
	Transform Affine
}

// FrameDesc is the per-step snapshot consumed by the render frontier. The
// frontier reads the latest published descriptor from its own thread; the
// core never blocks on rendering.
type FrameDesc struct {
	Proxies      []RenderProxy
	Camera       Camera
	CameraEntity EntityID
}

// CameraGS adopts the first camera entity of the world as the current camera.
// Runs at CameraStage, just before render collection.
type CameraGS struct{}

func (g *CameraGS) Init(any) {}

func cameraStage(gs GlobalSystem, w *World, registered []EntityHandle) {
	if len(registered) == 0 {
		return
	}
	if w.CurrentCamera() != InvalidEntityID {
		return
	}
	if e := registered[0].Entity(); e != nil {
		w.SetCurrentCamera(e.ID())
	}
}

// RenderGS gathers render proxies from its registered entities and publishes
// a frame descriptor at RenderStage. Double-buffered: the simulation writes
// one buffer while the render frontier may still hold the other.
type RenderGS struct {
	frames    [2]FrameDesc
	cur       int
	published atomic.Pointer[FrameDesc]
}

func (g *RenderGS) Init(any) {}

// Latest returns the most recently published frame descriptor, or nil before
// the first publish. Lock-free; safe from any thread.
func (g *RenderGS) Latest() *FrameDesc {
	return g.published.Load()
}

func renderStage(gs GlobalSystem, w *World, registered []EntityHandle) {
	g := gs.(*RenderGS)

	// No camera, nothing to render.
	camID := w.CurrentCamera()
	if camID == InvalidEntityID {
		return
	}
	camEntity := w.GetEntity(camID).Entity()
	if camEntity == nil {
		return
	}
	camDG := GetDataGroup[CameraDG](camEntity)
	if camDG == nil {
		return
	}

	next := &g.frames[g.cur]
	g.cur ^= 1
	next.Proxies = next.Proxies[:0]

	for _, h := range registered {
		e := h.Entity()
		if e == nil {
			continue
		}
		mr := GetDataGroup[MeshRenderer](e)
		tr := GetDataGroup[Transform](e)
		if mr.Model == 0 {
			continue
		}
		tr.cachedParentWorld = AffineIdentity()
		for p := e.Parent().Entity(); p != nil; p = p.Parent().Entity() {
			tr.cachedParentWorld = GetDataGroup[Transform](p).Local.Mul(tr.cachedParentWorld)
		}
		next.Proxies = append(next.Proxies, RenderProxy{
			Model:     mr.Model,
			Material:  mr.Material,
			Transform: tr.WorldTransform(),
		})
	}

	next.Camera = camDG.Camera
	next.CameraEntity = camID
	g.published.Store(next)
}

// LatestFrame returns the world's most recent frame descriptor, or nil when
// rendering is not registered or nothing has been published yet.
func LatestFrame(w *World) *FrameDesc {
	g := GlobalSystemInstance[RenderGS](w)
	if g == nil {
		return nil
	}
	return g.Latest()
}

var registerRenderingOnce sync.Once

// RegisterRendering queues the rendering bridge classes: the MeshRenderer and
// CameraDG data groups plus the CameraGS and RenderGS global systems. Call
// before Initialize from applications that feed a render frontier.
func RegisterRendering() {
	registerRenderingOnce.Do(func() {
		RegisterDataGroup[MeshRenderer](DataGroupDesc{
			Name: "MeshRenderer",
			Mode: InitArg,
			Factory: func() DataGroup {
				return &MeshRenderer{}
			},
		})
		RegisterDataGroup[CameraDG](DataGroupDesc{
			Name: "CameraDG",
			Mode: InitArg,
			Factory: func() DataGroup {
				return &CameraDG{}
			},
		})
		RegisterGlobalSystem[CameraGS](GlobalSystemDesc{
			Name:         "CameraGS",
			Dependencies: []Dependency{Required("CameraDG")},
			Stages:       []GSStageBinding{{Stage: CameraStage, Fn: cameraStage}},
			Factory:      func() GlobalSystem { return &CameraGS{} },
			Lifetime:     WhenRequired,
		})
		RegisterGlobalSystem[RenderGS](GlobalSystemDesc{
			Name:         "RenderGS",
			Dependencies: []Dependency{Required("Transform"), Required("MeshRenderer")},
			Stages:       []GSStageBinding{{Stage: RenderStage, Fn: renderStage}},
			Factory:      func() GlobalSystem { return &RenderGS{} },
			Lifetime:     AlwaysLive,
		})
	})
}
