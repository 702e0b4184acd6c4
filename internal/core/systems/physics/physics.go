// Package physics holds the broad-phase shapes used by the collision
// system. 2D shapes are 3D shapes with a zero depth.
package physics

import (
	"github.com/go-gl/mathgl/mgl32"
)

// AABB is an axis-aligned box.
type AABB struct {
	Min, Max mgl32.Vec3
}

// Box builds the AABB of the given full size centred on center.
func Box(center, size mgl32.Vec3) AABB {
	half := size.Mul(0.5)
	return AABB{Min: center.Sub(half), Max: center.Add(half)}
}

// Box2 is Box for a flat shape.
func Box2(center, size mgl32.Vec2) AABB {
	return Box(center.Vec3(0), size.Vec3(0))
}

func (a AABB) Center() mgl32.Vec3 { return a.Min.Add(a.Max).Mul(0.5) }
func (a AABB) Size() mgl32.Vec3   { return a.Max.Sub(a.Min) }

// Intersects reports overlap. Touching boxes overlap.
func (a AABB) Intersects(b AABB) bool {
	for i := range 3 {
		if a.Max[i] < b.Min[i] || b.Max[i] < a.Min[i] {
			return false
		}
	}
	return true
}

func (a AABB) Contains(p mgl32.Vec3) bool {
	for i := range 3 {
		if p[i] < a.Min[i] || p[i] > a.Max[i] {
			return false
		}
	}
	return true
}

// Clamp returns the point of a closest to p.
func (a AABB) Clamp(p mgl32.Vec3) mgl32.Vec3 {
	for i := range 3 {
		p[i] = mgl32.Clamp(p[i], a.Min[i], a.Max[i])
	}
	return p
}

// Inside reports whether b lies entirely in a.
func (a AABB) Inside(b AABB) bool {
	return a.Contains(b.Min) && a.Contains(b.Max)
}

// Sphere is a ball.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
}

// Contact describes an overlap. Normal is a unit vector pointing from the
// first shape to the second; Depth is how far they overlap along it.
type Contact struct {
	Normal mgl32.Vec3
	Depth  float32
}

// BoxBox tests two boxes and returns the axis of least penetration. Axes
// on which both boxes are flat are ignored, so 2D boxes resolve in plane.
func BoxBox(a, b AABB) (Contact, bool) {
	if !a.Intersects(b) {
		return Contact{}, false
	}
	best := Contact{Depth: -1}
	ca, cb := a.Center(), b.Center()
	for i := range 3 {
		if a.Min[i] == a.Max[i] && b.Min[i] == b.Max[i] {
			continue
		}
		depth := min(a.Max[i], b.Max[i]) - max(a.Min[i], b.Min[i])
		if best.Depth >= 0 && depth >= best.Depth {
			continue
		}
		var n mgl32.Vec3
		n[i] = 1
		if cb[i] < ca[i] {
			n[i] = -1
		}
		best = Contact{Normal: n, Depth: depth}
	}
	if best.Depth < 0 {
		return Contact{Normal: mgl32.Vec3{1, 0, 0}}, true
	}
	return best, true
}

// SphereSphere tests two spheres. Concentric spheres get an arbitrary
// but stable normal.
func SphereSphere(a, b Sphere) (Contact, bool) {
	d := b.Center.Sub(a.Center)
	r := a.Radius + b.Radius
	dist2 := d.Dot(d)
	if dist2 > r*r {
		return Contact{}, false
	}
	dist := d.Len()
	if dist == 0 {
		return Contact{Normal: mgl32.Vec3{1, 0, 0}, Depth: r}, true
	}
	return Contact{Normal: d.Mul(1 / dist), Depth: r - dist}, true
}

// SphereBox tests a sphere against a box using the closest point of the
// box to the sphere centre.
func SphereBox(s Sphere, b AABB) (Contact, bool) {
	closest := b.Clamp(s.Center)
	d := closest.Sub(s.Center)
	dist2 := d.Dot(d)
	if dist2 > s.Radius*s.Radius {
		return Contact{}, false
	}
	if dist2 == 0 {
		return insideBox(s, b), true
	}
	dist := d.Len()
	return Contact{Normal: d.Mul(1 / dist), Depth: s.Radius - dist}, true
}

// insideBox resolves a sphere whose centre is in b through the nearest face.
func insideBox(s Sphere, b AABB) Contact {
	best := Contact{Normal: mgl32.Vec3{1, 0, 0}, Depth: -1}
	for i := range 3 {
		if b.Min[i] == b.Max[i] {
			continue
		}
		toMin, toMax := s.Center[i]-b.Min[i], b.Max[i]-s.Center[i]
		var n mgl32.Vec3
		depth := toMin
		n[i] = 1
		if toMax < toMin {
			depth = toMax
			n[i] = -1
		}
		if best.Depth < 0 || depth < best.Depth {
			best = Contact{Normal: n, Depth: depth}
		}
	}
	best.Depth = max(best.Depth, 0) + s.Radius
	return best
}

// Reflect mirrors v about the plane of unit normal n.
func Reflect(v, n mgl32.Vec3) mgl32.Vec3 {
	return v.Sub(n.Mul(2 * v.Dot(n)))
}
