// Package ecs stores the simulation state of one scene: entities, the
// components attached to them and the systems that run over them.
//
// Components are addressed by the hash of their name, the same hash the
// wire protocol uses, so a component received from the network can be
// attached without knowing its Go type.
package ecs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
)

var (
	ErrDeadEntity     = errors.New("entity is not alive")
	ErrNilComponent   = errors.New("component is nil")
	ErrUnknownBackend = errors.New("unknown registry backend")
)

// Component is any value stored in a registry. Implementations use pointer
// receivers and return a constant, so the name is available from a nil
// pointer of the type.
type Component interface {
	ComponentName() string
}

// HashOf returns the wire hash of c.
func HashOf(c Component) codec.ComponentHash {
	return codec.Hash(c.ComponentName())
}

// System mutates a registry once per tick.
type System interface {
	Name() string
	Update(deltaTime float64, world Registry) error
}

// Registry is the storage contract every backend implements. A registry is
// owned by one game goroutine and is not safe for concurrent use.
type Registry interface {
	Spawn() Entity
	// Kill removes e and all its components. It reports false for an
	// entity that is already dead.
	Kill(e Entity) bool
	Alive(e Entity) bool
	Len() int
	// Entities lists live entities in index order.
	Entities() []Entity

	// Set attaches c to e, replacing any component with the same name.
	Set(e Entity, c Component) error
	Get(e Entity, hash codec.ComponentHash) (Component, bool)
	Has(e Entity, hash codec.ComponentHash) bool
	Remove(e Entity, hash codec.ComponentHash) bool
	// Components lists the components of e ordered by hash.
	Components(e Entity) []Component
	// Query lists, in index order, the live entities that carry every
	// given component. The result is a snapshot: killing entities while
	// iterating it is safe.
	Query(hashes ...codec.ComponentHash) []Entity

	AddSystem(s System)
	Systems() []System
	// RunSystems runs every system in registration order. A failing
	// system does not stop the ones after it; errors are combined.
	RunSystems(deltaTime float64) error

	// Clear kills every entity. Systems stay registered.
	Clear()
	Backend() Backend
}

// Backend names a registry implementation.
type Backend string

const (
	BackendSparse Backend = "sparse"
	BackendMap    Backend = "map"
)

// ParseBackend maps a configuration string to a backend. The empty string
// selects the sparse backend.
func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sparse", "native", "default":
		return BackendSparse, nil
	case "map":
		return BackendMap, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}

// New builds an empty registry of the given backend.
func New(backend Backend) (Registry, error) {
	switch backend {
	case BackendSparse, "":
		return NewSparse(), nil
	case BackendMap:
		return NewMap(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Get returns the component of type T attached to e.
func Get[T Component](r Registry, e Entity) (T, bool) {
	var zero T
	c, ok := r.Get(e, HashOf(zero))
	if !ok {
		return zero, false
	}
	v, ok := c.(T)
	return v, ok
}

// Has reports whether e carries a component of type T.
func Has[T Component](r Registry, e Entity) bool {
	var zero T
	return r.Has(e, HashOf(zero))
}

// Hash returns the wire hash of the component type T.
func Hash[T Component]() codec.ComponentHash {
	var zero T
	return HashOf(zero)
}

func checkComponent(c Component) error {
	if c == nil {
		return ErrNilComponent
	}
	return nil
}
