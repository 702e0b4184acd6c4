package ecs

import "fmt"

// Entity is a generational handle. The low 32 bits index the entity slot,
// the high 32 bits hold the generation the slot had when it was spawned, so
// a handle kept past Kill never resolves to the slot's next occupant.
type Entity uint64

// Null never refers to a live entity: generations start at 1.
const Null Entity = 0

func newEntity(index, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }

func (e Entity) String() string {
	return fmt.Sprintf("%d#%d", e.Index(), e.Generation())
}

// slots allocates entity indices and tracks their generation. Freed
// indices are reused LIFO.
type slots struct {
	generations []uint32
	alive       []bool
	free        []uint32
	count       int
}

func (s *slots) spawn() Entity {
	var index uint32
	if n := len(s.free); n > 0 {
		index = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		index = uint32(len(s.generations))
		s.generations = append(s.generations, 0)
		s.alive = append(s.alive, false)
	}
	s.generations[index]++
	if s.generations[index] == 0 {
		s.generations[index] = 1
	}
	s.alive[index] = true
	s.count++
	return newEntity(index, s.generations[index])
}

func (s *slots) valid(e Entity) bool {
	i := e.Index()
	return int(i) < len(s.generations) && s.alive[i] && s.generations[i] == e.Generation()
}

func (s *slots) kill(e Entity) bool {
	if !s.valid(e) {
		return false
	}
	s.alive[e.Index()] = false
	s.free = append(s.free, e.Index())
	s.count--
	return true
}

// each visits live entities in index order.
func (s *slots) each(fn func(Entity)) {
	for i, ok := range s.alive {
		if ok {
			fn(newEntity(uint32(i), s.generations[i]))
		}
	}
}

// reset kills everything but keeps generations, so handles from before
// the reset stay invalid.
func (s *slots) reset() {
	s.each(func(e Entity) { s.kill(e) })
}
