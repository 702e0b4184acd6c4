package systems

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/systems/physics"
)

// body is a tagged entity with a collider, flattened for pair tests.
type body struct {
	entity ecs.Entity
	tag    string
	sphere *physics.Sphere
	box    physics.AABB
	parent ecs.Entity

	t2 *components.Transform2D
	m2 *components.Movable2D
	t3 *components.Transform3D
	m3 *components.Movable3D
}

func (b *body) center() mgl32.Vec3 {
	if b.sphere != nil {
		return b.sphere.Center
	}
	return b.box.Center()
}

func (b *body) translate(d mgl32.Vec3) {
	switch {
	case b.t2 != nil:
		b.t2.Position = b.t2.Position.Add(d.Vec2())
		d[2] = 0
	case b.t3 != nil:
		b.t3.Position = b.t3.Position.Add(d)
	}
	b.box.Min, b.box.Max = b.box.Min.Add(d), b.box.Max.Add(d)
	if b.sphere != nil {
		b.sphere.Center = b.sphere.Center.Add(d)
	}
}

// reflect mirrors the velocity about n when the body moves along n.
func (b *body) reflect(n mgl32.Vec3) {
	switch {
	case b.m2 != nil:
		v := b.m2.Velocity.Vec3(0)
		if v.Dot(n) > 0 {
			b.m2.Velocity = physics.Reflect(v, n).Vec2()
		}
	case b.m3 != nil:
		if b.m3.Velocity.Dot(n) > 0 {
			b.m3.Velocity = physics.Reflect(b.m3.Velocity, n)
		}
	}
}

func collectBodies(world ecs.Registry) []*body {
	var out []*body
	for _, e := range world.Query(ecs.Hash[*components.Tag]()) {
		tag, _ := ecs.Get[*components.Tag](world, e)
		b := &body{entity: e, tag: tag.Value}
		if p, ok := ecs.Get[*components.Parent](world, e); ok {
			b.parent = ecs.Entity(p.Entity)
		}

		if t, ok := ecs.Get[*components.Transform2D](world, e); ok {
			c, ok := ecs.Get[*components.Collider2D](world, e)
			if !ok {
				continue
			}
			b.t2 = t
			b.m2, _ = ecs.Get[*components.Movable2D](world, e)
			b.box = physics.Box2(t.Position, c.Size)
			out = append(out, b)
			continue
		}

		t, ok := ecs.Get[*components.Transform3D](world, e)
		if !ok {
			continue
		}
		b.t3 = t
		b.m3, _ = ecs.Get[*components.Movable3D](world, e)
		if s, ok := ecs.Get[*components.SphereCollider3D](world, e); ok {
			b.sphere = &physics.Sphere{Center: t.Position.Add(s.Center), Radius: s.Radius}
			r := mgl32.Vec3{s.Radius, s.Radius, s.Radius}
			b.box = physics.AABB{Min: b.sphere.Center.Sub(r), Max: b.sphere.Center.Add(r)}
		} else if c, ok := ecs.Get[*components.BoxCollider3D](world, e); ok {
			b.box = physics.Box(t.Position.Add(c.Center), c.Size)
		} else {
			continue
		}
		out = append(out, b)
	}
	return out
}

func overlap(a, b *body) (physics.Contact, bool) {
	switch {
	case a.sphere != nil && b.sphere != nil:
		return physics.SphereSphere(*a.sphere, *b.sphere)
	case a.sphere != nil:
		return physics.SphereBox(*a.sphere, b.box)
	case b.sphere != nil:
		c, ok := physics.SphereBox(*b.sphere, a.box)
		c.Normal = c.Normal.Mul(-1)
		return c, ok
	default:
		return physics.BoxBox(a.box, b.box)
	}
}

func isActor(tag string) bool {
	return tag == components.TagPlayer || tag == components.TagEnemy
}

// Collision tests every pair of tagged colliders once per tick:
//
//	Player/Enemy vs Player/Enemy  bounce: positional correction and velocity reflection
//	Bullet vs Player/Enemy        hit, resolved by the damage system
//	Bullet vs Bullet              both destroyed
//
// A Skybox collider, or else the configured bounds, is the world: bullets
// that leave it are destroyed and players and enemies are clamped to it.
func Collision(ctx Context) ecs.System {
	const name = "collision"
	return NewFunc(name, func(_ float64, world ecs.Registry) error {
		ctx.Contacts.Reset()
		bodies := collectBodies(world)

		bounds, bounded := ctx.Bounds, ctx.Bounds != nil
		for _, b := range bodies {
			if b.tag == components.TagSkybox {
				box := b.box
				bounds, bounded = &box, true
				break
			}
		}

		if bounded {
			for _, b := range bodies {
				switch {
				case b.tag == components.TagBullet && !bounds.Contains(b.center()):
					ctx.destroy(name, world, b.entity, ecs.Null)
				case isActor(b.tag) && !bounds.Contains(b.center()):
					b.translate(bounds.Clamp(b.center()).Sub(b.center()))
					ctx.publish(name, EventMoved, b.entity, ecs.Null)
				}
			}
		}

		for i, a := range bodies {
			for _, b := range bodies[i+1:] {
				if a.tag == components.TagSkybox || b.tag == components.TagSkybox {
					continue
				}
				if !world.Alive(a.entity) || !world.Alive(b.entity) {
					continue
				}
				c, ok := overlap(a, b)
				if !ok {
					continue
				}

				switch {
				case isActor(a.tag) && isActor(b.tag):
					half := c.Normal.Mul(c.Depth / 2)
					a.translate(half.Mul(-1))
					b.translate(half)
					a.reflect(c.Normal)
					b.reflect(c.Normal.Mul(-1))
					ctx.publish(name, EventMoved, a.entity, b.entity)
					ctx.publish(name, EventMoved, b.entity, a.entity)
				case a.tag == components.TagBullet && b.tag == components.TagBullet:
					ctx.destroy(name, world, a.entity, b.entity)
					ctx.destroy(name, world, b.entity, a.entity)
				case a.tag == components.TagBullet && isActor(b.tag) && a.parent != b.entity:
					ctx.Contacts.Add(Hit{Bullet: a.entity, Target: b.entity})
				case b.tag == components.TagBullet && isActor(a.tag) && b.parent != a.entity:
					ctx.Contacts.Add(Hit{Bullet: b.entity, Target: a.entity})
				}
			}
		}
		return nil
	})
}
