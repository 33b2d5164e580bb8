package staged

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateAndFree(t *testing.T) {
	h := globalAllocator.allocate()
	require.True(t, h.Valid())
	assert.True(t, h.Live())
	assert.Nil(t, h.Entity(), "uninitialized slot exposes no entity")

	globalAllocator.initEntity(h, &Entity{id: 12345})
	require.NotNil(t, h.Entity())
	assert.Equal(t, EntityID(12345), h.ID())

	require.NoError(t, globalAllocator.freeHandle(h))
	assert.False(t, h.Live())
	assert.Nil(t, h.Entity())
	assert.Equal(t, InvalidEntityID, h.ID())
}

func TestDoubleFree(t *testing.T) {
	h := globalAllocator.allocate()
	require.NoError(t, globalAllocator.freeHandle(h))
	assert.ErrorIs(t, globalAllocator.freeHandle(h), ErrDoubleFree)
}

func TestSlotReuseBumpsGeneration(t *testing.T) {
	h := globalAllocator.allocate()
	slot := h.slot
	gen := h.gen
	require.NoError(t, globalAllocator.freeHandle(h))

	// The free list is LIFO, so the next allocation reuses the slot with a
	// strictly greater generation.
	h2 := globalAllocator.allocate()
	require.Same(t, slot, h2.slot)
	assert.Greater(t, h2.gen, gen)
	assert.False(t, h.Live(), "old handle must stay dead after slot reuse")
	assert.True(t, h2.Live())

	require.NoError(t, globalAllocator.freeHandle(h2))
}

func TestZeroHandle(t *testing.T) {
	var h EntityHandle
	assert.False(t, h.Valid())
	assert.False(t, h.Live())
	assert.Nil(t, h.Entity())
}
