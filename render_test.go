package staged

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSnapshotPublished(t *testing.T) {
	w := newTestWorld(t)
	assert.Nil(t, LatestFrame(w), "no frame before the first publish")

	cam := NewSpawnDescription().SetName("camera")
	AddDataGroup[Transform](cam, OptionalArg(nil))
	AddDataGroup[CameraDG](cam, Arg(&CameraDG{Camera: Camera{FOVDegrees: 60, Near: 0.1, Far: 100}}))
	AddGlobalSystem[CameraGS](cam)
	camID, err := w.CreateEntity(cam)
	require.NoError(t, err)

	mesh := NewSpawnDescription().SetName("prop")
	AddDataGroup[Transform](mesh, OptionalArg(&Transform{Local: TranslationAffine(1, 2, 3)}))
	AddDataGroup[MeshRenderer](mesh, Arg(&MeshRenderer{Model: 7, Material: 3}))
	AddGlobalSystem[RenderGS](mesh)
	_, err = w.CreateEntity(mesh)
	require.NoError(t, err)

	// First step: CameraGS adopts the camera at stage 249, RenderGS gathers
	// at stage 250.
	step()

	frame := LatestFrame(w)
	require.NotNil(t, frame)
	assert.Equal(t, camID, frame.CameraEntity)
	assert.Equal(t, float32(60), frame.Camera.FOVDegrees)
	require.Len(t, frame.Proxies, 1)
	assert.Equal(t, ModelHandle(7), frame.Proxies[0].Model)
	assert.Equal(t, MaterialHandle(3), frame.Proxies[0].Material)
	assert.Equal(t, float32(1), frame.Proxies[0].Transform.M[3])
	assert.Equal(t, float32(2), frame.Proxies[0].Transform.M[7])
}

func TestFrameSkipsModellessEntities(t *testing.T) {
	w := newTestWorld(t)

	cam := NewSpawnDescription()
	AddDataGroup[Transform](cam, OptionalArg(nil))
	AddDataGroup[CameraDG](cam, Arg(&CameraDG{}))
	AddGlobalSystem[CameraGS](cam)
	_, err := w.CreateEntity(cam)
	require.NoError(t, err)

	ghost := NewSpawnDescription()
	AddDataGroup[Transform](ghost, OptionalArg(nil))
	AddDataGroup[MeshRenderer](ghost, Arg(&MeshRenderer{Model: 0}))
	AddGlobalSystem[RenderGS](ghost)
	_, err = w.CreateEntity(ghost)
	require.NoError(t, err)

	step()

	frame := LatestFrame(w)
	require.NotNil(t, frame)
	assert.Empty(t, frame.Proxies)
}

func TestNoFrameWithoutCamera(t *testing.T) {
	w := newTestWorld(t)

	mesh := NewSpawnDescription()
	AddDataGroup[Transform](mesh, OptionalArg(nil))
	AddDataGroup[MeshRenderer](mesh, Arg(&MeshRenderer{Model: 1}))
	AddGlobalSystem[RenderGS](mesh)
	_, err := w.CreateEntity(mesh)
	require.NoError(t, err)

	step()
	assert.Nil(t, LatestFrame(w))
}

func TestFrameDoubleBuffering(t *testing.T) {
	w := newTestWorld(t)

	cam := NewSpawnDescription()
	AddDataGroup[Transform](cam, OptionalArg(nil))
	AddDataGroup[CameraDG](cam, Arg(&CameraDG{}))
	AddGlobalSystem[CameraGS](cam)
	_, err := w.CreateEntity(cam)
	require.NoError(t, err)

	mesh := NewSpawnDescription()
	AddDataGroup[Transform](mesh, OptionalArg(nil))
	AddDataGroup[MeshRenderer](mesh, Arg(&MeshRenderer{Model: 1}))
	AddGlobalSystem[RenderGS](mesh)
	_, err = w.CreateEntity(mesh)
	require.NoError(t, err)

	step()
	first := LatestFrame(w)
	require.NotNil(t, first)

	step()
	second := LatestFrame(w)
	require.NotNil(t, second)
	assert.NotSame(t, first, second, "consecutive steps publish alternating buffers")

	step()
	assert.Same(t, first, LatestFrame(w))
}
