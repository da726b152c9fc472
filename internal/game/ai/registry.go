package ai

import (
	"fmt"

	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Registry indexes Planners by the faction they control.
//
// Invariant: each faction is registered at most once.
type Registry struct {
	planners map[world.Faction]*Planner
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{planners: make(map[world.Faction]*Planner)}
}

// Register stores p under p.Faction().
//
// Precondition: p must not be nil.
// Postcondition: returns error on faction collision or a neutral faction.
func (r *Registry) Register(p *Planner) error {
	if p.Faction() == world.Neutral {
		return fmt.Errorf("ai.Registry: neutral enclaves are not controlled")
	}
	if _, exists := r.planners[p.Faction()]; exists {
		return fmt.Errorf("ai.Registry: faction %s already registered", p.Faction())
	}
	r.planners[p.Faction()] = p
	return nil
}

// PlannerFor returns the Planner for f, or false if f is not AI-controlled.
func (r *Registry) PlannerFor(f world.Faction) (*Planner, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.planners[f]
	return p, ok
}

// Plan runs every registered planner in faction order and returns the
// combined actions.
func (r *Registry) Plan(enclaves map[int]*world.Enclave, routes []world.Route, standing world.Orders, turn int) []Action {
	if r == nil {
		return nil
	}
	var out []Action
	for _, f := range world.Factions {
		if p, ok := r.planners[f]; ok {
			out = append(out, p.Plan(enclaves, routes, standing, turn)...)
		}
	}
	return out
}
