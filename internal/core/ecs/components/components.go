// Package components holds the component types shipped with the server and
// their wire codecs.
package components

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Tags understood by the collision rules.
const (
	TagPlayer = "Player"
	TagEnemy  = "Enemy"
	TagBullet = "Bullet"
	TagSkybox = "Skybox"
)

type Transform2D struct {
	Position mgl32.Vec2
	Scale    mgl32.Vec2
	Rotation float32
}

type Movable2D struct {
	Velocity     mgl32.Vec2
	Acceleration mgl32.Vec2
}

type Control2D struct {
	Up, Down, Left, Right, Shoot bool
}

// Collider2D is an axis-aligned box centred on the entity position.
type Collider2D struct {
	Size mgl32.Vec2
}

type RigidBody2D struct {
	Mass         float32
	Restitution  float32
	Friction     float32
	GravityScale float32
	Kinematic    bool
}

type Transform3D struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

type Movable3D struct {
	Velocity     mgl32.Vec3
	Acceleration mgl32.Vec3
	MinSpeed     float32
	MaxSpeed     float32
}

type Control3D struct {
	MoveUp, MoveDown, MoveLeft, MoveRight, MoveFront, MoveBack bool
	LookUp, LookDown, LookLeft, LookRight                      bool
	Shoot                                                      bool
}

type RigidBody3D struct {
	Mass        float32
	Drag        float32
	AngularDrag float32
	UseGravity  bool
	Kinematic   bool
}

// BoxCollider3D is an axis-aligned box; Center is an offset from the
// entity position.
type BoxCollider3D struct {
	Size   mgl32.Vec3
	Center mgl32.Vec3
}

type SphereCollider3D struct {
	Center mgl32.Vec3
	Radius float32
}

type Health struct {
	Current   int32
	Max       int32
	Shield    int32
	MaxShield int32
}

// Dead reports whether the entity should be destroyed.
func (h *Health) Dead() bool { return h.Current <= 0 }

type Tag struct{ Value string }

type Child struct{ Name string }

type Parent struct{ Entity uint64 }

type Id struct{ Value uint64 }

type Level struct {
	Level         uint32
	CurrentWeapon string
	CurrentExp    uint32
	RequiredExp   uint32
}

type Timer struct {
	Elapsed  float32
	Duration float32
}

// Expired reports whether the timer ran for at least its duration.
func (t *Timer) Expired() bool { return t.Elapsed >= t.Duration }

type Weapon struct {
	Damage        int32
	FireRate      float32
	ChargeMaxTime float32
	Level         uint32
}

// Template records which template an entity was built from.
type Template struct{ Name string }

type Evolve struct{ Name string }

// Spawned marks an entity whose spawn has already been announced.
type Spawned struct{ Done bool }

// NetworkEvent holds the last known input of the controlling client,
// indexed by event id. It never leaves the server.
type NetworkEvent struct {
	Held [EventSlots]bool
	Axes [EventSlots]float32
}

// Pressed reports whether event id is held. Out of range ids are not.
func (n *NetworkEvent) Pressed(id uint8) bool {
	return int(id) < EventSlots && n.Held[id]
}

// EventSlots covers every input event id.
const EventSlots = 16

// NetworkIP is the address of the client controlling the entity. It never
// leaves the server.
type NetworkIP struct{ Address string }

func (*Transform2D) ComponentName() string      { return "Transform2D" }
func (*Movable2D) ComponentName() string        { return "Movable2D" }
func (*Control2D) ComponentName() string        { return "Control2D" }
func (*Collider2D) ComponentName() string       { return "Collider2D" }
func (*RigidBody2D) ComponentName() string      { return "RigidBody2D" }
func (*Transform3D) ComponentName() string      { return "Transform3D" }
func (*Movable3D) ComponentName() string        { return "Movable3D" }
func (*Control3D) ComponentName() string        { return "Control3D" }
func (*RigidBody3D) ComponentName() string      { return "RigidBody3D" }
func (*BoxCollider3D) ComponentName() string    { return "BoxCollider3D" }
func (*SphereCollider3D) ComponentName() string { return "SphereCollider3D" }
func (*Health) ComponentName() string           { return "Health" }
func (*Tag) ComponentName() string              { return "Tag" }
func (*Child) ComponentName() string            { return "Child" }
func (*Parent) ComponentName() string           { return "Parent" }
func (*Id) ComponentName() string               { return "Id" }
func (*Level) ComponentName() string            { return "Level" }
func (*Timer) ComponentName() string            { return "Timer" }
func (*Weapon) ComponentName() string           { return "Weapon" }
func (*Template) ComponentName() string         { return "Template" }
func (*Evolve) ComponentName() string           { return "Evolve" }
func (*Spawned) ComponentName() string          { return "Spawned" }
func (*NetworkEvent) ComponentName() string     { return "NetworkEvent" }
func (*NetworkIP) ComponentName() string        { return "NetworkIp" }
