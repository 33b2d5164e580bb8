package staged

import (
	"os"
	"sync"
	"testing"
)

// Test fixture classes. Registration is process-global and one-shot, so every
// class used anywhere in the package tests is registered here and the
// registries are frozen once in TestMain.

// Counter is a simple Arg-initialized data group.
type Counter struct {
	N uint32
}

func (c *Counter) Init(arg any) {
	*c = *arg.(*Counter)
}

// AData and BData are NoArg-initialized data groups for dependency tests.
type AData struct {
	Seen      bool
	OptionalB bool
}

func (a *AData) Init(any) {}

type BData struct {
	Touched bool
}

func (b *BData) Init(any) {}

// PlainDG is a NoInit data group.
type PlainDG struct {
	Value int
}

func (p *PlainDG) Init(any) {}

// traceLog records (world, entity, stage) triples from trace systems. Tests
// filter by their own world ID, so leftover worlds from other tests cannot
// interfere.
type traceEntry struct {
	world  WorldID
	entity EntityID
	stage  StageID
}

var (
	traceMu  sync.Mutex
	traceLog []traceEntry
)

func traceAppend(w *World, id EntityID, s StageID) {
	traceMu.Lock()
	traceLog = append(traceLog, traceEntry{world: w.ID(), entity: id, stage: s})
	traceMu.Unlock()
}

func traceFor(world WorldID, stage StageID) []EntityID {
	traceMu.Lock()
	defer traceMu.Unlock()
	var out []EntityID
	for _, e := range traceLog {
		if e.world == world && e.stage == stage {
			out = append(out, e.entity)
		}
	}
	return out
}

func traceReset() {
	traceMu.Lock()
	traceLog = nil
	traceMu.Unlock()
}

// Global systems used across tests.

type ReqGS struct {
	Runs int
}

func (g *ReqGS) Init(any) {}

type ManualGS struct {
	Runs    int
	InitArg any
}

func (g *ManualGS) Init(arg any) { g.InitArg = arg }

type LiveGS struct {
	Runs int
}

func (g *LiveGS) Init(any) {}

type OrderedGSA struct{}

func (g *OrderedGSA) Init(any) {}

type OrderedGSB struct{}

func (g *OrderedGSB) Init(any) {}

var (
	gsOrderMu  sync.Mutex
	gsOrderLog = map[WorldID][]string{}
)

func gsOrderAppend(w *World, name string) {
	gsOrderMu.Lock()
	gsOrderLog[w.ID()] = append(gsOrderLog[w.ID()], name)
	gsOrderMu.Unlock()
}

func registerFixtures() {
	RegisterDataGroup[Counter](DataGroupDesc{
		Name:    "Counter",
		Mode:    InitArg,
		Factory: func() DataGroup { return &Counter{} },
	})
	RegisterDataGroup[AData](DataGroupDesc{
		Name:    "AData",
		Mode:    InitNoArg,
		Factory: func() DataGroup { return &AData{} },
	})
	RegisterDataGroup[BData](DataGroupDesc{
		Name:    "BData",
		Mode:    InitNoArg,
		Factory: func() DataGroup { return &BData{} },
	})
	RegisterDataGroup[PlainDG](DataGroupDesc{
		Name:    "PlainDG",
		Mode:    InitNone,
		Factory: func() DataGroup { return &PlainDG{} },
	})

	RegisterLocalSystem(LocalSystemDesc{
		Name:         "Adder",
		Dependencies: []Dependency{Required("Counter")},
		Stages: []StageBinding{{Stage: 0, Fn: func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup) {
			DataGroupAt[Counter](dgs, indices[0]).N++
		}}},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name:         "Multiplier",
		Dependencies: []Dependency{Required("Counter")},
		After:        []string{"Adder"},
		Stages: []StageBinding{{Stage: 0, Fn: func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup) {
			DataGroupAt[Counter](dgs, indices[0]).N *= 2
		}}},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name:         "OptionalPair",
		Dependencies: []Dependency{Required("AData"), Opt("BData")},
		Stages: []StageBinding{{Stage: 0, Fn: func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup) {
			a := DataGroupAt[AData](dgs, indices[0])
			b := DataGroupAt[BData](dgs, indices[1])
			a.Seen = true
			a.OptionalB = b != nil
			if b != nil {
				b.Touched = true
			}
		}}},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name: "TraceStage7",
		Stages: []StageBinding{{Stage: 7, Fn: func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup) {
			traceAppend(w, id, 7)
		}}},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name: "EdgeStages",
		Stages: []StageBinding{
			{Stage: 0, Fn: func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup) {
				traceAppend(w, id, 0)
			}},
			{Stage: StageID(StageCount - 1), Fn: func(w *World, id EntityID, indices []DataGroupIndex, dgs []DataGroup) {
				traceAppend(w, id, StageID(StageCount-1))
			}},
		},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name:   "TopoA",
		Before: []string{"TopoB"},
		Stages: []StageBinding{{Stage: 3, Fn: func(*World, EntityID, []DataGroupIndex, []DataGroup) {}}},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name:   "TopoB",
		Stages: []StageBinding{{Stage: 3, Fn: func(*World, EntityID, []DataGroupIndex, []DataGroup) {}}},
	})
	RegisterLocalSystem(LocalSystemDesc{
		Name:   "TopoC",
		After:  []string{"TopoB"},
		Stages: []StageBinding{{Stage: 3, Fn: func(*World, EntityID, []DataGroupIndex, []DataGroup) {}}},
	})

	RegisterGlobalSystem[ReqGS](GlobalSystemDesc{
		Name: "ReqGS",
		Stages: []GSStageBinding{{Stage: 5, Fn: func(gs GlobalSystem, w *World, registered []EntityHandle) {
			gs.(*ReqGS).Runs++
		}}},
		Factory:  func() GlobalSystem { return &ReqGS{} },
		Lifetime: WhenRequired,
	})
	RegisterGlobalSystem[ManualGS](GlobalSystemDesc{
		Name: "ManualGS",
		Stages: []GSStageBinding{{Stage: 6, Fn: func(gs GlobalSystem, w *World, registered []EntityHandle) {
			gs.(*ManualGS).Runs++
		}}},
		Factory:  func() GlobalSystem { return &ManualGS{} },
		Mode:     InitOptionalArg,
		Lifetime: Manual,
	})
	RegisterGlobalSystem[LiveGS](GlobalSystemDesc{
		Name: "LiveGS",
		Stages: []GSStageBinding{{Stage: 4, Fn: func(gs GlobalSystem, w *World, registered []EntityHandle) {
			gs.(*LiveGS).Runs++
		}}},
		Factory:  func() GlobalSystem { return &LiveGS{} },
		Lifetime: AlwaysLive,
	})
	RegisterGlobalSystem[OrderedGSA](GlobalSystemDesc{
		Name:   "OrderedGSA",
		Before: []string{"OrderedGSB"},
		Stages: []GSStageBinding{{Stage: 9, Fn: func(gs GlobalSystem, w *World, registered []EntityHandle) {
			gsOrderAppend(w, "OrderedGSA")
		}}},
		Factory:  func() GlobalSystem { return &OrderedGSA{} },
		Lifetime: WhenRequired,
	})
	RegisterGlobalSystem[OrderedGSB](GlobalSystemDesc{
		Name: "OrderedGSB",
		Stages: []GSStageBinding{{Stage: 9, Fn: func(gs GlobalSystem, w *World, registered []EntityHandle) {
			gsOrderAppend(w, "OrderedGSB")
		}}},
		Factory:  func() GlobalSystem { return &OrderedGSB{} },
		Lifetime: WhenRequired,
	})
}

func TestMain(m *testing.M) {
	registerFixtures()
	RegisterRendering()
	if err := Initialize(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// newTestWorld creates a fresh world and schedules its destruction at test
// cleanup.
func newTestWorld(t *testing.T) *World {
	t.Helper()
	es := Entities()
	id := es.CreateWorld()
	w, ok := es.World(id)
	if !ok {
		t.Fatalf("world %d not found after creation", id)
	}
	t.Cleanup(func() {
		es.DestroyWorld(id)
		es.Step(0, 0)
	})
	return w
}

// step advances the whole entity system once with nominal deltas.
func step() {
	Entities().Step(1.0/60.0, 1.0/50.0)
}
