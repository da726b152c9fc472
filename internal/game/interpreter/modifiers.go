package interpreter

import (
	"github.com/cory-johannsen/enclaves/internal/game/rules"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Modifiers are the scalar multipliers derived from an enclave's active effects.
type Modifiers struct {
	Production float64
	Combat     float64
}

// Identity is the modifier pair of an enclave with no active effects.
var Identity = Modifiers{Production: 1, Combat: 1}

// ModifiersOf aggregates every statModifier rule on e's active effects
// whose guard allows it at turn. Each starts at 1.0, subtracts the matching
// reductions, and is clamped at 0.
//
// Postcondition: Production >= 0 and Combat >= 0.
func ModifiersOf(e *world.Enclave, turn int) Modifiers {
	if e == nil {
		return Identity
	}
	m := Identity
	env := envFor(e, turn)
	for _, eff := range e.Effects {
		for _, r := range eff.Continuous {
			if r.Kind != rules.KindStatModifier || !r.Allows(env) {
				continue
			}
			switch r.Stat {
			case rules.StatProduction:
				m.Production -= r.Reduction
			case rules.StatCombat:
				m.Combat -= r.Reduction
			}
		}
	}
	if m.Production < 0 {
		m.Production = 0
	}
	if m.Combat < 0 {
		m.Combat = 0
	}
	return m
}
