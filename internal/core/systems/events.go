package systems

import (
	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/events/bus"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
)

// Event types published on the scene topic. Data is always an EntityEvent.
const (
	EventMoved     = "entity.moved"
	EventSpawned   = "entity.spawned"
	EventDamaged   = "entity.damaged"
	EventDestroyed = "entity.destroyed"
)

// EntityEvent tells which entity changed. Cause is the entity responsible,
// or ecs.Null.
type EntityEvent struct {
	Scene  string
	Entity ecs.Entity
	Cause  ecs.Entity
}

func (c Context) publish(source, typ string, e, cause ecs.Entity) {
	if c.Bus == nil {
		return
	}
	ev := bus.NewEvent(typ, source, EntityEvent{Scene: c.Scene, Entity: e, Cause: cause})
	if err := c.Bus.PublishToTopic(c.Scene, ev); err != nil {
		c.Logger.Warn("Event handler failed",
			log.String("event", typ),
			log.Stringer("entity", e),
			log.Error(err))
	}
}

// destroy kills e and announces it. Dead entities are ignored.
func (c Context) destroy(source string, world ecs.Registry, e, cause ecs.Entity) {
	if world.Kill(e) {
		c.publish(source, EventDestroyed, e, cause)
	}
}

// Hit is a bullet touching a target.
type Hit struct {
	Bullet ecs.Entity
	Target ecs.Entity
}

// Contacts carries the hits found by the collision system to the damage
// system within one tick.
type Contacts struct {
	hits []Hit
}

func (c *Contacts) Add(h Hit)   { c.hits = append(c.hits, h) }
func (c *Contacts) Hits() []Hit { return c.hits }
func (c *Contacts) Reset()      { c.hits = c.hits[:0] }
