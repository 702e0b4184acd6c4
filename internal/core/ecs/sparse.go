package ecs

import (
	"slices"

	"github.com/zeusync/zeusnet/internal/core/protocol/codec"
)

const absent = -1

// pool is a sparse set of one component type: sparse maps an entity index
// to a position in the packed dense and owners arrays.
type pool struct {
	sparse []int32
	dense  []Component
	owners []uint32
}

func (p *pool) index(i uint32) int32 {
	if int(i) >= len(p.sparse) {
		return absent
	}
	return p.sparse[i]
}

func (p *pool) set(i uint32, c Component) {
	if at := p.index(i); at != absent {
		p.dense[at] = c
		return
	}
	for int(i) >= len(p.sparse) {
		p.sparse = append(p.sparse, absent)
	}
	p.sparse[i] = int32(len(p.dense))
	p.dense = append(p.dense, c)
	p.owners = append(p.owners, i)
}

// remove swaps the last element into the hole.
func (p *pool) remove(i uint32) bool {
	at := p.index(i)
	if at == absent {
		return false
	}
	last := int32(len(p.dense) - 1)
	if at != last {
		moved := p.owners[last]
		p.dense[at] = p.dense[last]
		p.owners[at] = moved
		p.sparse[moved] = at
	}
	p.dense[last] = nil
	p.dense = p.dense[:last]
	p.owners = p.owners[:last]
	p.sparse[i] = absent
	return true
}

// Sparse is the default backend: one sparse set per component hash.
// Lookups are two slice indexings and queries walk the smallest pool.
type Sparse struct {
	scheduler
	slots slots
	pools map[codec.ComponentHash]*pool
}

var _ Registry = (*Sparse)(nil)

func NewSparse() *Sparse {
	return &Sparse{pools: make(map[codec.ComponentHash]*pool)}
}

func (s *Sparse) Backend() Backend { return BackendSparse }
func (s *Sparse) Spawn() Entity    { return s.slots.spawn() }
func (s *Sparse) Alive(e Entity) bool {
	return s.slots.valid(e)
}
func (s *Sparse) Len() int { return s.slots.count }

func (s *Sparse) Kill(e Entity) bool {
	if !s.slots.valid(e) {
		return false
	}
	for _, p := range s.pools {
		p.remove(e.Index())
	}
	return s.slots.kill(e)
}

func (s *Sparse) Entities() []Entity {
	out := make([]Entity, 0, s.slots.count)
	s.slots.each(func(e Entity) { out = append(out, e) })
	return out
}

func (s *Sparse) Set(e Entity, c Component) error {
	if err := checkComponent(c); err != nil {
		return err
	}
	if !s.slots.valid(e) {
		return ErrDeadEntity
	}
	hash := HashOf(c)
	p, ok := s.pools[hash]
	if !ok {
		p = &pool{}
		s.pools[hash] = p
	}
	p.set(e.Index(), c)
	return nil
}

func (s *Sparse) Get(e Entity, hash codec.ComponentHash) (Component, bool) {
	if !s.slots.valid(e) {
		return nil, false
	}
	p, ok := s.pools[hash]
	if !ok {
		return nil, false
	}
	at := p.index(e.Index())
	if at == absent {
		return nil, false
	}
	return p.dense[at], true
}

func (s *Sparse) Has(e Entity, hash codec.ComponentHash) bool {
	_, ok := s.Get(e, hash)
	return ok
}

func (s *Sparse) Remove(e Entity, hash codec.ComponentHash) bool {
	if !s.slots.valid(e) {
		return false
	}
	p, ok := s.pools[hash]
	if !ok {
		return false
	}
	return p.remove(e.Index())
}

func (s *Sparse) Components(e Entity) []Component {
	if !s.slots.valid(e) {
		return nil
	}
	hashes := make([]codec.ComponentHash, 0, len(s.pools))
	for hash, p := range s.pools {
		if p.index(e.Index()) != absent {
			hashes = append(hashes, hash)
		}
	}
	slices.Sort(hashes)
	out := make([]Component, 0, len(hashes))
	for _, hash := range hashes {
		p := s.pools[hash]
		out = append(out, p.dense[p.index(e.Index())])
	}
	return out
}

func (s *Sparse) Query(hashes ...codec.ComponentHash) []Entity {
	if len(hashes) == 0 {
		return s.Entities()
	}
	pools := make([]*pool, 0, len(hashes))
	for _, hash := range hashes {
		p, ok := s.pools[hash]
		if !ok || len(p.dense) == 0 {
			return nil
		}
		pools = append(pools, p)
	}
	slices.SortFunc(pools, func(a, b *pool) int { return len(a.dense) - len(b.dense) })

	indices := make([]uint32, 0, len(pools[0].owners))
next:
	for _, i := range pools[0].owners {
		for _, p := range pools[1:] {
			if p.index(i) == absent {
				continue next
			}
		}
		indices = append(indices, i)
	}
	slices.Sort(indices)

	out := make([]Entity, len(indices))
	for n, i := range indices {
		out[n] = newEntity(i, s.slots.generations[i])
	}
	return out
}

func (s *Sparse) RunSystems(deltaTime float64) error {
	return s.run(deltaTime, s)
}

func (s *Sparse) Clear() {
	s.slots.reset()
	clear(s.pools)
}
