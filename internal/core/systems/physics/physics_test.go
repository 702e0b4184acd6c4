package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestBoxBox(t *testing.T) {
	a := Box2(mgl32.Vec2{0, 0}, mgl32.Vec2{2, 2})
	b := Box2(mgl32.Vec2{1.5, 0.2}, mgl32.Vec2{2, 2})

	c, ok := BoxBox(a, b)
	assert.True(t, ok)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, c.Normal)
	assert.InDelta(t, 0.5, c.Depth, 1e-6)

	_, ok = BoxBox(a, Box2(mgl32.Vec2{5, 0}, mgl32.Vec2{2, 2}))
	assert.False(t, ok)
}

func TestSphereSphere(t *testing.T) {
	c, ok := SphereSphere(Sphere{Radius: 1}, Sphere{Center: mgl32.Vec3{0, 1.5, 0}, Radius: 1})
	assert.True(t, ok)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, c.Normal)
	assert.InDelta(t, 0.5, c.Depth, 1e-6)

	_, ok = SphereSphere(Sphere{Radius: 1}, Sphere{Center: mgl32.Vec3{3, 0, 0}, Radius: 1})
	assert.False(t, ok)
}

func TestSphereBox(t *testing.T) {
	box := Box(mgl32.Vec3{}, mgl32.Vec3{2, 2, 2})

	c, ok := SphereBox(Sphere{Center: mgl32.Vec3{1.5, 0, 0}, Radius: 1}, box)
	assert.True(t, ok)
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, c.Normal)
	assert.InDelta(t, 0.5, c.Depth, 1e-6)

	c, ok = SphereBox(Sphere{Center: mgl32.Vec3{0.8, 0, 0}, Radius: 1}, box)
	assert.True(t, ok, "centre inside")
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, c.Normal)
	assert.InDelta(t, 1.2, c.Depth, 1e-6)

	_, ok = SphereBox(Sphere{Center: mgl32.Vec3{3, 0, 0}, Radius: 1}, box)
	assert.False(t, ok)
}

func TestBoundsHelpers(t *testing.T) {
	world := Box(mgl32.Vec3{}, mgl32.Vec3{10, 10, 10})
	assert.True(t, world.Contains(mgl32.Vec3{5, -5, 0}))
	assert.False(t, world.Contains(mgl32.Vec3{5.1, 0, 0}))
	assert.Equal(t, mgl32.Vec3{5, -5, 0}, world.Clamp(mgl32.Vec3{9, -9, 0}))
	assert.True(t, world.Inside(Box(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})))

	assert.Equal(t, mgl32.Vec3{1, 1, 0}, Reflect(mgl32.Vec3{1, -1, 0}, mgl32.Vec3{0, 1, 0}))
}
