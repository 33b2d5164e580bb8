package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oriumgames/staged"
)

// Health is a minimal data group: hit points that regenerate every step.
type Health struct {
	HP, MaxHP int32
}

func (h *Health) Init(arg any) {
	if arg != nil {
		*h = *arg.(*Health)
	}
}

func main() {
	staged.RegisterDataGroup[Health](staged.DataGroupDesc{
		Name:    "Health",
		Mode:    staged.InitArg,
		Factory: func() staged.DataGroup { return &Health{} },
	})
	staged.RegisterLocalSystem(staged.LocalSystemDesc{
		Name:         "Regenerate",
		Dependencies: []staged.Dependency{staged.Required("Health")},
		Stages: []staged.StageBinding{{Stage: 10, Fn: func(
			w *staged.World, id staged.EntityID,
			indices []staged.DataGroupIndex, dgs []staged.DataGroup,
		) {
			h := staged.DataGroupAt[Health](dgs, indices[0])
			if h.HP < h.MaxHP {
				h.HP++
			}
		}}},
	})
	staged.RegisterLocalSystem(staged.LocalSystemDesc{
		Name:         "Report",
		Dependencies: []staged.Dependency{staged.Required("Health")},
		After:        []string{"Regenerate"},
		Stages: []staged.StageBinding{{Stage: 10, Fn: func(
			w *staged.World, id staged.EntityID,
			indices []staged.DataGroupIndex, dgs []staged.DataGroup,
		) {
			h := staged.DataGroupAt[Health](dgs, indices[0])
			fmt.Printf("entity %d: %d/%d hp\n", id, h.HP, h.MaxHP)
		}}},
	})

	log, _ := zap.NewDevelopment()
	app := staged.NewApp(staged.WithLogger(log))
	if err := app.Initialize(); err != nil {
		log.Fatal("initialize failed", zap.Error(err))
	}

	world, _ := staged.Entities().World(app.DefaultWorld())
	sd := staged.NewSpawnDescription().SetName("hero").AddLocalSystem("Regenerate").AddLocalSystem("Report")
	staged.AddDataGroup[Health](sd, staged.Arg(&Health{HP: 1, MaxHP: 5}))
	if _, err := world.CreateEntity(sd); err != nil {
		log.Fatal("spawn failed", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = app.Run(ctx)
}
