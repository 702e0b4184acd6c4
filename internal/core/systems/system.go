// Package systems implements the gameplay systems a scene can list in its
// configuration. Systems run in the order the scene lists them and report
// what they changed on the game's event bus.
package systems

import (
	"errors"
	"fmt"
	"slices"

	"github.com/zeusync/zeusnet/internal/core/ecs"
	"github.com/zeusync/zeusnet/internal/core/events/bus"
	"github.com/zeusync/zeusnet/internal/core/observability/log"
	"github.com/zeusync/zeusnet/internal/core/systems/physics"
)

var ErrUnknownSystem = errors.New("unknown system")

// Context is what a system needs beyond its registry. One Context is
// shared by every system of a scene.
type Context struct {
	Scene string
	// Bus receives entity events on the Scene topic. Nil disables events.
	Bus bus.EventBus
	// Bounds is the configured world box. A Skybox entity overrides it.
	Bounds   *physics.AABB
	Contacts *Contacts
	Logger   log.Log
}

func (c Context) withDefaults() Context {
	if c.Contacts == nil {
		c.Contacts = &Contacts{}
	}
	if c.Logger == nil {
		c.Logger = log.Nop()
	}
	return c
}

// Func adapts a function to ecs.System.
type Func struct {
	name string
	fn   func(deltaTime float64, world ecs.Registry) error
}

func NewFunc(name string, fn func(deltaTime float64, world ecs.Registry) error) Func {
	return Func{name: name, fn: fn}
}

func (f Func) Name() string { return f.name }

func (f Func) Update(deltaTime float64, world ecs.Registry) error {
	return f.fn(deltaTime, world)
}

var catalog = map[string]func(Context) ecs.System{
	"position":   Movement2D,
	"movement2d": Movement2D,
	"movement3d": Movement3D,
	"control":    Control,
	"spawn":      Spawn,
	"collision":  Collision,
	"damage":     Damage,
}

// New builds the system registered under name.
func New(name string, ctx Context) (ecs.System, error) {
	build, ok := catalog[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSystem, name)
	}
	return build(ctx.withDefaults()), nil
}

// Names lists the known system names, sorted.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
