package components

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/protocol"
	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
)

// writer appends little-endian fields to a scratch packet payload.
type writer struct{ p protocol.Packet }

func (w *writer) f32(vs ...float32) *writer {
	for _, v := range vs {
		w.p.WriteFloat32(v)
	}
	return w
}

func (w *writer) vec2(v mgl32.Vec2) *writer { return w.f32(v[0], v[1]) }
func (w *writer) vec3(v mgl32.Vec3) *writer { return w.f32(v[0], v[1], v[2]) }

func (w *writer) i32(v int32) *writer {
	w.p.WriteInt32(v)
	return w
}

func (w *writer) u32(v uint32) *writer {
	w.p.WriteUint32(v)
	return w
}

func (w *writer) u64(v uint64) *writer {
	w.p.WriteUint64(v)
	return w
}

func (w *writer) bools(vs ...bool) *writer {
	for _, v := range vs {
		w.p.WriteBool(v)
	}
	return w
}

// str truncates at the 2-byte length limit.
func (w *writer) str(s string) *writer {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	_ = w.p.WriteString(s)
	return w
}

// reader keeps the first error so a decoder can read every field and
// check once at the end.
type reader struct {
	r   *protocol.Reader
	err error
}

func (r *reader) f32() float32 {
	if r.err != nil {
		return 0
	}
	var v float32
	v, r.err = r.r.ReadFloat32()
	return v
}

func (r *reader) vec2() mgl32.Vec2 { return mgl32.Vec2{r.f32(), r.f32()} }
func (r *reader) vec3() mgl32.Vec3 { return mgl32.Vec3{r.f32(), r.f32(), r.f32()} }

func (r *reader) i32() int32 {
	if r.err != nil {
		return 0
	}
	var v int32
	v, r.err = r.r.ReadInt32()
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	var v uint32
	v, r.err = r.r.ReadUint32()
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var v uint64
	v, r.err = r.r.ReadUint64()
	return v
}

func (r *reader) boolean() bool {
	if r.err != nil {
		return false
	}
	var v bool
	v, r.err = r.r.ReadBool()
	return v
}

func (r *reader) str() string {
	if r.err != nil {
		return ""
	}
	var v string
	v, r.err = r.r.ReadString()
	return v
}

// standard builds the codec of a pointer component. Decoding accepts
// trailing bytes so a newer peer may append fields.
func standard[T any, PT interface {
	*T
	ecs.Component
}](encode func(*writer, PT), decode func(*reader, PT)) codec.Codec {
	var name PT
	return codec.New(name.ComponentName(),
		func(v PT) []byte {
			if v == nil {
				return nil
			}
			w := &writer{}
			encode(w, v)
			return w.p.Payload
		},
		func(b []byte) (PT, error) {
			v := PT(new(T))
			r := &reader{r: protocol.NewReader(b)}
			decode(r, v)
			if r.err != nil {
				return nil, r.err
			}
			return v, nil
		})
}

// Standard returns the codecs of every networked component.
func Standard() []codec.Codec {
	return []codec.Codec{
		standard(func(w *writer, c *Transform2D) {
			w.vec2(c.Position).vec2(c.Scale).f32(c.Rotation)
		}, func(r *reader, c *Transform2D) {
			c.Position, c.Scale, c.Rotation = r.vec2(), r.vec2(), r.f32()
		}),
		standard(func(w *writer, c *Movable2D) {
			w.vec2(c.Velocity).vec2(c.Acceleration)
		}, func(r *reader, c *Movable2D) {
			c.Velocity, c.Acceleration = r.vec2(), r.vec2()
		}),
		standard(func(w *writer, c *Control2D) {
			w.bools(c.Up, c.Down, c.Left, c.Right, c.Shoot)
		}, func(r *reader, c *Control2D) {
			c.Up, c.Down, c.Left, c.Right, c.Shoot = r.boolean(), r.boolean(), r.boolean(), r.boolean(), r.boolean()
		}),
		standard(func(w *writer, c *Collider2D) {
			w.vec2(c.Size)
		}, func(r *reader, c *Collider2D) {
			c.Size = r.vec2()
		}),
		standard(func(w *writer, c *RigidBody2D) {
			w.f32(c.Mass, c.Restitution, c.Friction, c.GravityScale).bools(c.Kinematic)
		}, func(r *reader, c *RigidBody2D) {
			c.Mass, c.Restitution, c.Friction, c.GravityScale = r.f32(), r.f32(), r.f32(), r.f32()
			c.Kinematic = r.boolean()
		}),
		// quaternion goes out as x, y, z, w
		standard(func(w *writer, c *Transform3D) {
			w.vec3(c.Position).vec3(c.Rotation.V).f32(c.Rotation.W).vec3(c.Scale)
		}, func(r *reader, c *Transform3D) {
			c.Position = r.vec3()
			c.Rotation.V = r.vec3()
			c.Rotation.W = r.f32()
			c.Scale = r.vec3()
		}),
		standard(func(w *writer, c *Movable3D) {
			w.vec3(c.Velocity).vec3(c.Acceleration).f32(c.MinSpeed, c.MaxSpeed)
		}, func(r *reader, c *Movable3D) {
			c.Velocity, c.Acceleration = r.vec3(), r.vec3()
			c.MinSpeed, c.MaxSpeed = r.f32(), r.f32()
		}),
		standard(func(w *writer, c *Control3D) {
			w.bools(c.MoveUp, c.MoveDown, c.MoveLeft, c.MoveRight, c.MoveFront, c.MoveBack,
				c.LookUp, c.LookDown, c.LookLeft, c.LookRight, c.Shoot)
		}, func(r *reader, c *Control3D) {
			for _, f := range []*bool{
				&c.MoveUp, &c.MoveDown, &c.MoveLeft, &c.MoveRight, &c.MoveFront, &c.MoveBack,
				&c.LookUp, &c.LookDown, &c.LookLeft, &c.LookRight, &c.Shoot,
			} {
				*f = r.boolean()
			}
		}),
		standard(func(w *writer, c *RigidBody3D) {
			w.f32(c.Mass, c.Drag, c.AngularDrag).bools(c.UseGravity, c.Kinematic)
		}, func(r *reader, c *RigidBody3D) {
			c.Mass, c.Drag, c.AngularDrag = r.f32(), r.f32(), r.f32()
			c.UseGravity, c.Kinematic = r.boolean(), r.boolean()
		}),
		standard(func(w *writer, c *BoxCollider3D) {
			w.vec3(c.Size).vec3(c.Center)
		}, func(r *reader, c *BoxCollider3D) {
			c.Size, c.Center = r.vec3(), r.vec3()
		}),
		standard(func(w *writer, c *SphereCollider3D) {
			w.vec3(c.Center).f32(c.Radius)
		}, func(r *reader, c *SphereCollider3D) {
			c.Center, c.Radius = r.vec3(), r.f32()
		}),
		standard(func(w *writer, c *Health) {
			w.i32(c.Current).i32(c.Max).i32(c.Shield).i32(c.MaxShield)
		}, func(r *reader, c *Health) {
			c.Current, c.Max, c.Shield, c.MaxShield = r.i32(), r.i32(), r.i32(), r.i32()
		}),
		standard(func(w *writer, c *Tag) { w.str(c.Value) },
			func(r *reader, c *Tag) { c.Value = r.str() }),
		standard(func(w *writer, c *Child) { w.str(c.Name) },
			func(r *reader, c *Child) { c.Name = r.str() }),
		standard(func(w *writer, c *Parent) { w.u64(c.Entity) },
			func(r *reader, c *Parent) { c.Entity = r.u64() }),
		standard(func(w *writer, c *Id) { w.u64(c.Value) },
			func(r *reader, c *Id) { c.Value = r.u64() }),
		standard(func(w *writer, c *Level) {
			w.u32(c.Level).str(c.CurrentWeapon).u32(c.CurrentExp).u32(c.RequiredExp)
		}, func(r *reader, c *Level) {
			c.Level = r.u32()
			c.CurrentWeapon = r.str()
			c.CurrentExp, c.RequiredExp = r.u32(), r.u32()
		}),
		standard(func(w *writer, c *Timer) { w.f32(c.Elapsed, c.Duration) },
			func(r *reader, c *Timer) { c.Elapsed, c.Duration = r.f32(), r.f32() }),
		standard(func(w *writer, c *Weapon) {
			w.i32(c.Damage).f32(c.FireRate, c.ChargeMaxTime).u32(c.Level)
		}, func(r *reader, c *Weapon) {
			c.Damage = r.i32()
			c.FireRate, c.ChargeMaxTime = r.f32(), r.f32()
			c.Level = r.u32()
		}),
		standard(func(w *writer, c *Template) { w.str(c.Name) },
			func(r *reader, c *Template) { c.Name = r.str() }),
		standard(func(w *writer, c *Evolve) { w.str(c.Name) },
			func(r *reader, c *Evolve) { c.Name = r.str() }),
	}
}

// RegisterStandard registers every networked component. Server-only
// components (NetworkEvent, NetworkIP, Spawned) are left out, which keeps
// them out of snapshots.
func RegisterStandard(reg *codec.Registry) error {
	for _, c := range Standard() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
