package systems

import (
	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
)

// Spawn announces entities created during the tick, those carrying an
// unset Spawned marker, and destroys entities whose Timer ran out.
func Spawn(ctx Context) ecs.System {
	const name = "spawn"
	return NewFunc(name, func(dt float64, world ecs.Registry) error {
		for _, e := range world.Query(ecs.Hash[*components.Spawned]()) {
			s, _ := ecs.Get[*components.Spawned](world, e)
			if s.Done {
				continue
			}
			s.Done = true
			ctx.publish(name, EventSpawned, e, ecs.Null)
		}

		for _, e := range world.Query(ecs.Hash[*components.Timer]()) {
			t, _ := ecs.Get[*components.Timer](world, e)
			if t.Duration <= 0 {
				continue
			}
			t.Elapsed += float32(dt)
			if t.Expired() {
				ctx.destroy(name, world, e, ecs.Null)
			}
		}
		return nil
	})
}
