package staged

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(16 * time.Millisecond)
	return c.now
}

type countingPlatform struct {
	polls int
	limit int
}

func (p *countingPlatform) PollEvents()       { p.polls++ }
func (p *countingPlatform) ShouldClose() bool { return p.polls >= p.limit }

func TestAppInitializeCreatesDefaultWorld(t *testing.T) {
	app := NewApp()
	require.NoError(t, app.Initialize())

	_, ok := Entities().World(app.DefaultWorld())
	assert.True(t, ok)

	// Idempotent: a second call neither fails nor creates another world.
	worlds := Entities().WorldCount()
	require.NoError(t, app.Initialize())
	assert.Equal(t, worlds, Entities().WorldCount())
}

func TestAppRunStopsOnPlatformClose(t *testing.T) {
	platform := &countingPlatform{limit: 3}
	app := NewApp(
		WithClock(&fakeClock{now: time.Unix(0, 0)}),
		WithPlatform(platform),
		WithFixedDelta(0.02),
	)
	require.NoError(t, app.Run(context.Background()))
	assert.Equal(t, 3, platform.polls)
}

func TestAppRunStopsOnContextCancel(t *testing.T) {
	app := NewApp(WithClock(&fakeClock{now: time.Unix(0, 0)}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, app.Run(ctx))
}

func TestStepTimerDelta(t *testing.T) {
	timer := newStepTimer(&fakeClock{now: time.Unix(0, 0)})
	dt := timer.tick()
	assert.InDelta(t, 0.016, dt, 1e-9)
}
