package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
)

// Movement2D integrates Transform2D by Movable2D. A non-zero velocity is
// normalised first, so velocity is a direction and acceleration a speed
// per axis: position += velocity * acceleration * dt.
func Movement2D(ctx Context) ecs.System {
	const name = "movement2d"
	return NewFunc(name, func(dt float64, world ecs.Registry) error {
		step := float32(dt)
		for _, e := range world.Query(ecs.Hash[*components.Transform2D](), ecs.Hash[*components.Movable2D]()) {
			t, _ := ecs.Get[*components.Transform2D](world, e)
			m, _ := ecs.Get[*components.Movable2D](world, e)

			if m.Velocity.Len() > 0 {
				m.Velocity = m.Velocity.Normalize()
			}
			delta := mgl32.Vec2{
				m.Velocity[0] * m.Acceleration[0] * step,
				m.Velocity[1] * m.Acceleration[1] * step,
			}
			if delta == (mgl32.Vec2{}) {
				continue
			}
			t.Position = t.Position.Add(delta)
			ctx.publish(name, EventMoved, e, ecs.Null)
		}
		return nil
	})
}

// Movement3D integrates Transform3D by Movable3D:
// position += velocity * acceleration * dt. The control system points the
// acceleration along the entity orientation.
func Movement3D(ctx Context) ecs.System {
	const name = "movement3d"
	return NewFunc(name, func(dt float64, world ecs.Registry) error {
		step := float32(dt)
		for _, e := range world.Query(ecs.Hash[*components.Transform3D](), ecs.Hash[*components.Movable3D]()) {
			t, _ := ecs.Get[*components.Transform3D](world, e)
			m, _ := ecs.Get[*components.Movable3D](world, e)

			delta := mgl32.Vec3{
				m.Velocity[0] * m.Acceleration[0] * step,
				m.Velocity[1] * m.Acceleration[1] * step,
				m.Velocity[2] * m.Acceleration[2] * step,
			}
			if delta == (mgl32.Vec3{}) {
				continue
			}
			t.Position = t.Position.Add(delta)
			ctx.publish(name, EventMoved, e, ecs.Null)
		}
		return nil
	})
}
