package combat

import "github.com/cory-johannsen/enclaves/internal/game/world"

// Birthright supplies archetype-specific adjustments to the order resolvers.
// Implementations must be pure functions of their arguments.
type Birthright interface {
	// AttackBonus is added to the power of every attack launched from e.
	AttackBonus(e *world.Enclave) int
	// AssistMultiplier adjusts the configured assist share for assists sent from e.
	AssistMultiplier(e *world.Enclave, base float64) float64
	// HoldBonus is added to the flat reinforcement of e before modifiers.
	HoldBonus(e *world.Enclave) int
}

// NoBirthright is the identity Birthright.
type NoBirthright struct{}

func (NoBirthright) AttackBonus(*world.Enclave) int                        { return 0 }
func (NoBirthright) AssistMultiplier(_ *world.Enclave, base float64) float64 { return base }
func (NoBirthright) HoldBonus(*world.Enclave) int                          { return 0 }

// Birthrights maps enclave archetypes to their Birthright. Archetypes
// without a registration resolve to NoBirthright.
type Birthrights struct {
	byArchetype map[string]Birthright
}

// NewBirthrights creates an empty registry.
func NewBirthrights() *Birthrights {
	return &Birthrights{byArchetype: make(map[string]Birthright)}
}

// Register binds archetype to b, overwriting any existing binding.
//
// Precondition: b must not be nil.
func (r *Birthrights) Register(archetype string, b Birthright) {
	r.byArchetype[archetype] = b
}

// For returns the Birthright for e's archetype.
//
// Postcondition: Never returns nil.
func (r *Birthrights) For(e *world.Enclave) Birthright {
	if r == nil || e == nil {
		return NoBirthright{}
	}
	if b, ok := r.byArchetype[e.Archetype]; ok {
		return b
	}
	return NoBirthright{}
}
