package staged

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

// Platform is the boundary to the windowing/event layer, which lives outside
// the core. A nil platform means a headless loop that only stops through
// context cancellation.
type Platform interface {
	// PollEvents pumps platform events once per step.
	PollEvents()
	// ShouldClose reports whether the platform requested shutdown.
	ShouldClose() bool
}

// Option configures an App.
type Option func(*App)

// WithLogger installs the zap logger used by the app and the entity system.
func WithLogger(log *zap.Logger) Option {
	return func(a *App) { a.log = log }
}

// WithDiagnostics installs the stage diagnostics sink.
func WithDiagnostics(d Diagnostics) Option {
	return func(a *App) { a.diag = d }
}

// WithFixedDelta sets the fixed delta time passed to every step, in seconds.
func WithFixedDelta(dt float64) Option {
	return func(a *App) { a.fixedDelta = dt }
}

// WithClock installs an alternative time source.
func WithClock(c Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithPlatform installs the windowing boundary polled by Run.
func WithPlatform(p Platform) Option {
	return func(a *App) { a.platform = p }
}

// App wires the runtime together: it freezes the registries, creates the
// default world, and drives the simulation loop.
type App struct {
	log        *zap.Logger
	diag       Diagnostics
	clock      Clock
	platform   Platform
	fixedDelta float64

	timer       *stepTimer
	world       WorldID
	initialized bool
}

// NewApp constructs an App. Register every data group and system before
// calling Initialize or Run.
func NewApp(opts ...Option) *App {
	a := &App{
		log:        zap.NewNop(),
		diag:       NopDiagnostics{},
		clock:      systemClock{},
		fixedDelta: 1.0 / 60.0,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initialize drains the registration queues in dependency order (data groups,
// then local systems, then global systems), freezes the registries, and
// creates the default world. Idempotent once complete.
func (a *App) Initialize() error {
	if a.initialized {
		return nil
	}
	if err := Initialize(); err != nil {
		return err
	}
	es := Entities()
	es.SetLogger(a.log)
	es.SetDiagnostics(a.diag)
	a.world = es.CreateWorld()
	a.timer = newStepTimer(a.clock)
	a.initialized = true
	a.log.Info("app initialized",
		zap.Int("dataGroups", globalRegistries.dataGroupCount()),
		zap.Int("localSystems", globalRegistries.localSystemCount()),
		zap.Int("globalSystems", globalRegistries.globalSystemCount()))
	return nil
}

// DefaultWorld returns the world created by Initialize.
func (a *App) DefaultWorld() WorldID {
	return a.world
}

// Step runs one simulation step with a measured delta time.
func (a *App) Step() {
	if a.timer == nil {
		a.timer = newStepTimer(a.clock)
	}
	dt := a.timer.tick()
	Entities().Step(dt, a.fixedDelta)
}

// Run initializes the app if needed and drives the step loop until the
// context is cancelled, an interrupt arrives, or the platform requests
// shutdown.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)
	go func() {
		<-sig
		cancel()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}
		if a.platform != nil {
			a.platform.PollEvents()
			if a.platform.ShouldClose() {
				return nil
			}
		}
		a.Step()
	}
}
