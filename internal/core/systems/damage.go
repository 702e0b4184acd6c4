package systems

import (
	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/ecs/components"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
)

// Damage resolves the hits found by the collision system this tick. The
// target loses the bullet's Weapon damage; at zero health or below it is
// destroyed. The bullet is always destroyed, so it hits at most once.
func Damage(ctx Context) ecs.System {
	const name = "damage"
	return NewFunc(name, func(_ float64, world ecs.Registry) error {
		for _, hit := range ctx.Contacts.Hits() {
			if !world.Alive(hit.Bullet) || !world.Alive(hit.Target) {
				continue
			}
			var damage int32
			if w, ok := ecs.Get[*components.Weapon](world, hit.Bullet); ok {
				damage = w.Damage
			}
			ctx.destroy(name, world, hit.Bullet, hit.Target)

			h, ok := ecs.Get[*components.Health](world, hit.Target)
			if !ok {
				continue
			}
			h.Current -= damage
			ctx.Logger.Debug("Entity hit",
				log.Stringer("target", hit.Target),
				log.Int32("damage", damage),
				log.Int32("health", h.Current))
			if h.Dead() {
				ctx.destroy(name, world, hit.Target, hit.Bullet)
				continue
			}
			ctx.publish(name, EventDamaged, hit.Target, hit.Bullet)
		}
		ctx.Contacts.Reset()
		return nil
	})
}
