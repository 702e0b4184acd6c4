package components

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/multierr"

	"github.com/zeusync/zeusnet/internal/core/ecs"
)

var ErrUnknownComponent = errors.New("unknown component")

// Definition describes an entity in a game configuration: component name
// to component settings, as decoded from JSON or YAML.
type Definition map[string]any

// Build decodes every component of the definition, in name order. Unknown
// or invalid components are reported in the returned error while the rest
// are still built.
func (d Definition) Build() ([]ecs.Component, error) {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	slices.Sort(names)

	var (
		out  []ecs.Component
		errs error
	)
	for _, name := range names {
		c, err := Decode(name, d[name])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out = append(out, c)
	}
	return out, errs
}

// Decode builds the component called name from its settings. The legacy
// names Transform, Movable, Control and Collider map to the 2D components.
func Decode(name string, settings any) (ecs.Component, error) {
	dec, ok := decoders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", name, err)
	}
	c, err := dec(raw)
	if err != nil {
		return nil, fmt.Errorf("component %s: %w", name, err)
	}
	return c, nil
}

type vec2 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

func (v vec2) gl() mgl32.Vec2 { return mgl32.Vec2{v.X, v.Y} }

type vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (v vec3) gl() mgl32.Vec3 { return mgl32.Vec3{v.X, v.Y, v.Z} }

type quat struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

func (q *quat) gl() mgl32.Quat {
	if q == nil {
		return mgl32.QuatIdent()
	}
	return mgl32.Quat{W: q.W, V: mgl32.Vec3{q.X, q.Y, q.Z}}
}

func scale2(v *vec2) mgl32.Vec2 {
	if v == nil {
		return mgl32.Vec2{1, 1}
	}
	return v.gl()
}

func scale3(v *vec3) mgl32.Vec3 {
	if v == nil {
		return mgl32.Vec3{1, 1, 1}
	}
	return v.gl()
}

func as[S any](build func(S) ecs.Component) func([]byte) (ecs.Component, error) {
	return func(raw []byte) (ecs.Component, error) {
		var s S
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return build(s), nil
	}
}

// named accepts either a bare string or an object with the given key.
func named(key string, build func(string) ecs.Component) func([]byte) (ecs.Component, error) {
	return func(raw []byte) (ecs.Component, error) {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return build(s), nil
		}
		var obj map[string]string
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, err
		}
		return build(obj[key]), nil
	}
}

type transform2D struct {
	Position vec2    `json:"position"`
	Scale    *vec2   `json:"scale"`
	Rotation float32 `json:"rotation"`
}

type movable2D struct {
	Velocity     vec2 `json:"velocity"`
	Acceleration vec2 `json:"acceleration"`
}

type collider2D struct {
	Size vec2 `json:"size"`
}

type rigidBody2D struct {
	Mass         float32 `json:"mass"`
	Restitution  float32 `json:"restitution"`
	Friction     float32 `json:"friction"`
	GravityScale float32 `json:"gravityScale"`
	Kinematic    bool    `json:"isKinematic"`
}

type transform3D struct {
	Position vec3  `json:"position"`
	Rotation *quat `json:"rotation"`
	Scale    *vec3 `json:"scale"`
}

type movable3D struct {
	Velocity     vec3    `json:"velocity"`
	Acceleration vec3    `json:"acceleration"`
	MinSpeed     float32 `json:"minSpeed"`
	MaxSpeed     float32 `json:"maxSpeed"`
}

type control3D struct {
	MoveUp    bool `json:"moveUp"`
	MoveDown  bool `json:"moveDown"`
	MoveLeft  bool `json:"moveLeft"`
	MoveRight bool `json:"moveRight"`
	MoveFront bool `json:"moveFront"`
	MoveBack  bool `json:"moveBack"`
	LookUp    bool `json:"lookUp"`
	LookDown  bool `json:"lookDown"`
	LookLeft  bool `json:"lookLeft"`
	LookRight bool `json:"lookRight"`
	Shoot     bool `json:"shoot"`
}

type rigidBody3D struct {
	Mass        float32 `json:"mass"`
	Drag        float32 `json:"drag"`
	AngularDrag float32 `json:"angularDrag"`
	UseGravity  bool    `json:"useGravity"`
	Kinematic   bool    `json:"isKinematic"`
}

type boxCollider3D struct {
	Size   vec3 `json:"size"`
	Center vec3 `json:"center"`
}

type sphereCollider3D struct {
	Center vec3    `json:"center"`
	Radius float32 `json:"radius"`
}

type health struct {
	Current   int32 `json:"currentHealth"`
	Max       int32 `json:"maxHealth"`
	Shield    int32 `json:"shield"`
	MaxShield int32 `json:"maxShield"`
}

type level struct {
	Level         uint32 `json:"level"`
	CurrentWeapon string `json:"currentWeapon"`
	CurrentExp    uint32 `json:"currentExp"`
	RequiredExp   uint32 `json:"requiredExp"`
}

type timer struct {
	Elapsed  float32 `json:"elapsed"`
	Duration float32 `json:"duration"`
}

type weapon struct {
	Damage        int32   `json:"damage"`
	FireRate      float32 `json:"fireRate"`
	ChargeMaxTime float32 `json:"chargeMaxTime"`
	Level         uint32  `json:"level"`
}

type spawned struct {
	Done bool `json:"has_spawned"`
}

var decoders = map[string]func([]byte) (ecs.Component, error){
	"Transform2D": as(func(s transform2D) ecs.Component {
		return &Transform2D{Position: s.Position.gl(), Scale: scale2(s.Scale), Rotation: s.Rotation}
	}),
	"Movable2D": as(func(s movable2D) ecs.Component {
		return &Movable2D{Velocity: s.Velocity.gl(), Acceleration: s.Acceleration.gl()}
	}),
	"Control2D": as(func(s Control2D) ecs.Component { return &s }),
	"Collider2D": as(func(s collider2D) ecs.Component {
		return &Collider2D{Size: s.Size.gl()}
	}),
	"RigidBody2D": as(func(s rigidBody2D) ecs.Component {
		return &RigidBody2D{Mass: s.Mass, Restitution: s.Restitution, Friction: s.Friction, GravityScale: s.GravityScale, Kinematic: s.Kinematic}
	}),
	"Transform3D": as(func(s transform3D) ecs.Component {
		return &Transform3D{Position: s.Position.gl(), Rotation: s.Rotation.gl(), Scale: scale3(s.Scale)}
	}),
	"Movable3D": as(func(s movable3D) ecs.Component {
		return &Movable3D{Velocity: s.Velocity.gl(), Acceleration: s.Acceleration.gl(), MinSpeed: s.MinSpeed, MaxSpeed: s.MaxSpeed}
	}),
	"Control3D": as(func(s control3D) ecs.Component {
		c := Control3D(s)
		return &c
	}),
	"RigidBody3D": as(func(s rigidBody3D) ecs.Component {
		c := RigidBody3D(s)
		return &c
	}),
	"BoxCollider3D": as(func(s boxCollider3D) ecs.Component {
		return &BoxCollider3D{Size: s.Size.gl(), Center: s.Center.gl()}
	}),
	"SphereCollider3D": as(func(s sphereCollider3D) ecs.Component {
		return &SphereCollider3D{Center: s.Center.gl(), Radius: s.Radius}
	}),
	"Health": as(func(s health) ecs.Component {
		c := Health(s)
		return &c
	}),
	"Tag":      named("tag", func(s string) ecs.Component { return &Tag{Value: s} }),
	"Child":    named("name", func(s string) ecs.Component { return &Child{Name: s} }),
	"Template": named("name", func(s string) ecs.Component { return &Template{Name: s} }),
	"Evolve":   named("name", func(s string) ecs.Component { return &Evolve{Name: s} }),
	"Parent": as(func(s struct {
		Entity uint64 `json:"entity"`
	}) ecs.Component {
		return &Parent{Entity: s.Entity}
	}),
	"Id": as(func(s struct {
		ID uint64 `json:"id"`
	}) ecs.Component {
		return &Id{Value: s.ID}
	}),
	"Level": as(func(s level) ecs.Component {
		c := Level(s)
		return &c
	}),
	"Timer": as(func(s timer) ecs.Component {
		c := Timer(s)
		return &c
	}),
	"Weapon": as(func(s weapon) ecs.Component {
		c := Weapon(s)
		return &c
	}),
	"Spawned": as(func(s spawned) ecs.Component {
		c := Spawned(s)
		return &c
	}),
}

func init() {
	for legacy, name := range map[string]string{
		"Transform": "Transform2D",
		"Movable":   "Movable2D",
		"Control":   "Control2D",
		"Collider":  "Collider2D",
	} {
		decoders[legacy] = decoders[name]
	}
}
