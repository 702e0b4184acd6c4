package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/protocol"
)

// LookSpeed is how fast a held look button turns an entity, in radians
// per second.
const LookSpeed = 2.0

var (
	axisUp    = mgl32.Vec3{0, 1, 0}
	axisRight = mgl32.Vec3{1, 0, 0}
	axisFront = mgl32.Vec3{0, 0, -1}
)

// Control turns the held input of a NetworkEvent into motion. In 2D the
// velocity takes the raw screen axes (up is -y); in 3D the acceleration
// is the sum of held directions rotated by the entity orientation, and
// look input turns the orientation first.
func Control(ctx Context) ecs.System {
	const name = "control"
	return NewFunc(name, func(dt float64, world ecs.Registry) error {
		for _, e := range world.Query(ecs.Hash[*components.NetworkEvent]()) {
			input, _ := ecs.Get[*components.NetworkEvent](world, e)
			if ctrl, ok := ecs.Get[*components.Control2D](world, e); ok {
				if m, ok := ecs.Get[*components.Movable2D](world, e); ok {
					control2D(input, ctrl, m)
				}
			}
			if ctrl, ok := ecs.Get[*components.Control3D](world, e); ok {
				t, okT := ecs.Get[*components.Transform3D](world, e)
				m, okM := ecs.Get[*components.Movable3D](world, e)
				if okT && okM {
					control3D(input, ctrl, t, m, float32(dt))
				}
			}
		}
		return nil
	})
}

func held(input *components.NetworkEvent, id protocol.EventID) bool {
	return input.Pressed(uint8(id))
}

// control2D keeps the precedence of the original input handling: down
// wins over up and right over left.
func control2D(input *components.NetworkEvent, ctrl *components.Control2D, m *components.Movable2D) {
	var v mgl32.Vec2
	if ctrl.Up && held(input, protocol.EventMoveUp) {
		v[1] = -1
	}
	if ctrl.Down && held(input, protocol.EventMoveDown) {
		v[1] = 1
	}
	if ctrl.Left && held(input, protocol.EventMoveLeft) {
		v[0] = -1
	}
	if ctrl.Right && held(input, protocol.EventMoveRight) {
		v[0] = 1
	}
	m.Velocity = v
}

func control3D(input *components.NetworkEvent, ctrl *components.Control3D, t *components.Transform3D, m *components.Movable3D, dt float32) {
	if t.Rotation.Len() == 0 {
		t.Rotation = mgl32.QuatIdent()
	}
	look := func(allowed bool, id protocol.EventID) float32 {
		if !allowed {
			return 0
		}
		turn := input.Axes[id]
		input.Axes[id] = 0
		if held(input, id) {
			turn += LookSpeed * dt
		}
		return turn
	}
	yaw := look(ctrl.LookLeft, protocol.EventLookLeft) - look(ctrl.LookRight, protocol.EventLookRight)
	pitch := look(ctrl.LookUp, protocol.EventLookUp) - look(ctrl.LookDown, protocol.EventLookDown)
	if yaw != 0 || pitch != 0 {
		rot := mgl32.QuatRotate(yaw, axisUp).Mul(t.Rotation).Mul(mgl32.QuatRotate(pitch, axisRight))
		t.Rotation = rot.Normalize()
	}

	var dir mgl32.Vec3
	for _, d := range []struct {
		allowed bool
		id      protocol.EventID
		axis    mgl32.Vec3
	}{
		{ctrl.MoveFront, protocol.EventMoveFront, axisFront},
		{ctrl.MoveBack, protocol.EventMoveBack, axisFront.Mul(-1)},
		{ctrl.MoveLeft, protocol.EventMoveLeft, axisRight.Mul(-1)},
		{ctrl.MoveRight, protocol.EventMoveRight, axisRight},
		{ctrl.MoveUp, protocol.EventMoveUp, axisUp},
		{ctrl.MoveDown, protocol.EventMoveDown, axisUp.Mul(-1)},
	} {
		if d.allowed && held(input, d.id) {
			dir = dir.Add(d.axis)
		}
	}
	m.Acceleration = t.Rotation.Rotate(dir)
}
