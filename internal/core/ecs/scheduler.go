package ecs

import (
	"fmt"

	"go.uber.org/multierr"
)

// scheduler keeps systems in registration order.
type scheduler struct {
	systems []System
}

func (s *scheduler) AddSystem(sys System) {
	if sys != nil {
		s.systems = append(s.systems, sys)
	}
}

func (s *scheduler) Systems() []System {
	out := make([]System, len(s.systems))
	copy(out, s.systems)
	return out
}

func (s *scheduler) run(deltaTime float64, world Registry) error {
	var err error
	for _, sys := range s.systems {
		if e := sys.Update(deltaTime, world); e != nil {
			err = multierr.Append(err, fmt.Errorf("system %s: %w", sys.Name(), e))
		}
	}
	return err
}
