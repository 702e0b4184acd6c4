package components

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
)

func TestRegisterStandard(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, RegisterStandard(reg))
	assert.Equal(t, len(Standard()), reg.Len())

	assert.True(t, reg.Has(codec.Hash("Transform2D")))
	assert.Equal(t, codec.ComponentHash(0x616A103D), ecs.Hash[*Transform2D]())
	assert.Equal(t, codec.ComponentHash(0x986145AF), ecs.Hash[*Health]())

	assert.False(t, reg.Has(ecs.Hash[*NetworkEvent]()))
	assert.False(t, reg.Has(ecs.Hash[*NetworkIP]()))
}

func samples() []ecs.Component {
	maxF := float32(math.MaxFloat32)
	return []ecs.Component{
		&Transform2D{},
		&Transform2D{Position: mgl32.Vec2{-12.5, 3}, Scale: mgl32.Vec2{1, 1}, Rotation: -90},
		&Transform2D{Position: mgl32.Vec2{maxF, -maxF}, Scale: mgl32.Vec2{maxF, maxF}, Rotation: maxF},
		&Movable2D{},
		&Movable2D{Velocity: mgl32.Vec2{-1, 0}, Acceleration: mgl32.Vec2{200, 200}},
		&Control2D{},
		&Control2D{Up: true, Down: true, Left: true, Right: true, Shoot: true},
		&Collider2D{Size: mgl32.Vec2{32, 16}},
		&RigidBody2D{Mass: 2, Restitution: 0.5, Friction: -0.1, GravityScale: 9.8, Kinematic: true},
		&Transform3D{},
		&Transform3D{Position: mgl32.Vec3{1, -2, 3}, Rotation: mgl32.QuatRotate(1, mgl32.Vec3{0, 1, 0}), Scale: mgl32.Vec3{1, 1, 1}},
		&Movable3D{Velocity: mgl32.Vec3{-1, 0, 1}, Acceleration: mgl32.Vec3{2, 2, 2}, MinSpeed: 0.5, MaxSpeed: maxF},
		&Control3D{MoveFront: true, LookLeft: true, Shoot: true},
		&RigidBody3D{Mass: 1, Drag: 0.1, AngularDrag: 0.05, UseGravity: true},
		&BoxCollider3D{Size: mgl32.Vec3{1, 2, 3}, Center: mgl32.Vec3{0, -1, 0}},
		&SphereCollider3D{Center: mgl32.Vec3{0, 0, 0}, Radius: 4},
		&Health{},
		&Health{Current: -5, Max: math.MaxInt32, Shield: math.MinInt32, MaxShield: 10},
		&Tag{},
		&Tag{Value: TagBullet},
		&Child{Name: "cannon"},
		&Parent{Entity: math.MaxUint64},
		&Id{Value: 42},
		&Level{Level: math.MaxUint32, CurrentWeapon: "laser", CurrentExp: 10, RequiredExp: 100},
		&Timer{Elapsed: 0.25, Duration: 3},
		&Weapon{Damage: 30, FireRate: 0.2, ChargeMaxTime: 1, Level: 2},
		&Weapon{Damage: math.MinInt32},
		&Template{Name: "Player"},
		&Evolve{Name: "BigPlayer"},
	}
}

func TestStandardCodecs_RoundTrip(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, RegisterStandard(reg))

	for _, c := range samples() {
		t.Run(c.ComponentName(), func(t *testing.T) {
			cd, ok := reg.Lookup(ecs.HashOf(c))
			require.True(t, ok)

			data, err := cd.Encode(c)
			require.NoError(t, err)

			back, err := cd.Decode(data)
			require.NoError(t, err)
			assert.Equal(t, c, back)
		})
	}
}

func TestStandardCodecs_Truncated(t *testing.T) {
	reg := codec.NewRegistry()
	require.NoError(t, RegisterStandard(reg))

	cd, _ := reg.Lookup(ecs.Hash[*Transform2D]())
	data, err := cd.Encode(&Transform2D{Rotation: 1})
	require.NoError(t, err)
	assert.Len(t, data, 20)

	_, err = cd.Decode(data[:19])
	assert.Error(t, err)
}

func TestDefinition_Build(t *testing.T) {
	def := Definition{
		"Transform": map[string]any{
			"position": map[string]any{"x": 10, "y": 20},
			"rotation": 0,
			"scale":    map[string]any{"x": 1, "y": 1},
		},
		"Movable": map[string]any{
			"velocity":     map[string]any{"x": 0, "y": 0},
			"acceleration": map[string]any{"x": 150, "y": 150},
		},
		"Control": map[string]any{"up": true, "down": true, "left": false, "right": true, "shoot": true},
		"Health":  map[string]any{"currentHealth": 25, "maxHealth": 100, "shield": 0, "maxShield": 0},
		"Tag":     "Player",
		"Weapon":  map[string]any{"damage": 30, "fireRate": 0.5, "level": 1},
		"Unknown": map[string]any{},
	}

	built, err := def.Build()
	assert.ErrorIs(t, err, ErrUnknownComponent)
	require.Len(t, built, 6)

	byName := map[string]ecs.Component{}
	for _, c := range built {
		byName[c.ComponentName()] = c
	}
	assert.Equal(t, &Transform2D{Position: mgl32.Vec2{10, 20}, Scale: mgl32.Vec2{1, 1}}, byName["Transform2D"])
	assert.Equal(t, &Movable2D{Acceleration: mgl32.Vec2{150, 150}}, byName["Movable2D"])
	assert.Equal(t, &Control2D{Up: true, Down: true, Right: true, Shoot: true}, byName["Control2D"])
	assert.Equal(t, &Health{Current: 25, Max: 100}, byName["Health"])
	assert.Equal(t, &Tag{Value: "Player"}, byName["Tag"])
	assert.Equal(t, &Weapon{Damage: 30, FireRate: 0.5, Level: 1}, byName["Weapon"])
}

func TestDefinition_FromYAML(t *testing.T) {
	src := `
Transform3D:
  position: {x: 1, y: 2, z: 3}
SphereCollider3D:
  radius: 2
Tag:
  tag: Enemy
`
	var def Definition
	require.NoError(t, yaml.Unmarshal([]byte(src), &def))

	built, err := def.Build()
	require.NoError(t, err)
	require.Len(t, built, 3)

	tr, ok := built[2].(*Transform3D)
	require.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, tr.Position)
	assert.Equal(t, mgl32.QuatIdent(), tr.Rotation)
	assert.Equal(t, mgl32.Vec3{1, 1, 1}, tr.Scale)
	assert.Equal(t, &SphereCollider3D{Radius: 2}, built[0])
	assert.Equal(t, &Tag{Value: TagEnemy}, built[1])
}
