package ecs

import (
	"slices"

	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
)

// Map keeps one component map per entity. It trades lookup speed for a
// trivially correct layout and is used to cross-check the sparse backend.
type Map struct {
	scheduler
	slots      slots
	components map[Entity]map[codec.ComponentHash]Component
}

var _ Registry = (*Map)(nil)

func NewMap() *Map {
	return &Map{components: make(map[Entity]map[codec.ComponentHash]Component)}
}

func (m *Map) Backend() Backend { return BackendMap }
func (m *Map) Alive(e Entity) bool {
	return m.slots.valid(e)
}
func (m *Map) Len() int { return m.slots.count }

func (m *Map) Spawn() Entity {
	e := m.slots.spawn()
	m.components[e] = make(map[codec.ComponentHash]Component)
	return e
}

func (m *Map) Kill(e Entity) bool {
	if !m.slots.kill(e) {
		return false
	}
	delete(m.components, e)
	return true
}

func (m *Map) Entities() []Entity {
	out := make([]Entity, 0, m.slots.count)
	m.slots.each(func(e Entity) { out = append(out, e) })
	return out
}

func (m *Map) Set(e Entity, c Component) error {
	if err := checkComponent(c); err != nil {
		return err
	}
	set, ok := m.components[e]
	if !ok {
		return ErrDeadEntity
	}
	set[HashOf(c)] = c
	return nil
}

func (m *Map) Get(e Entity, hash codec.ComponentHash) (Component, bool) {
	c, ok := m.components[e][hash]
	return c, ok
}

func (m *Map) Has(e Entity, hash codec.ComponentHash) bool {
	_, ok := m.components[e][hash]
	return ok
}

func (m *Map) Remove(e Entity, hash codec.ComponentHash) bool {
	set, ok := m.components[e]
	if !ok {
		return false
	}
	if _, ok = set[hash]; !ok {
		return false
	}
	delete(set, hash)
	return true
}

func (m *Map) Components(e Entity) []Component {
	set, ok := m.components[e]
	if !ok {
		return nil
	}
	hashes := make([]codec.ComponentHash, 0, len(set))
	for hash := range set {
		hashes = append(hashes, hash)
	}
	slices.Sort(hashes)
	out := make([]Component, len(hashes))
	for i, hash := range hashes {
		out[i] = set[hash]
	}
	return out
}

func (m *Map) Query(hashes ...codec.ComponentHash) []Entity {
	var out []Entity
	m.slots.each(func(e Entity) {
		set := m.components[e]
		for _, hash := range hashes {
			if _, ok := set[hash]; !ok {
				return
			}
		}
		out = append(out, e)
	})
	return out
}

func (m *Map) RunSystems(deltaTime float64) error {
	return m.run(deltaTime, m)
}

func (m *Map) Clear() {
	m.slots.reset()
	clear(m.components)
}
