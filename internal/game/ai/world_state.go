package ai

import "github.com/cory-johannsen/enclaves/internal/game/world"

// View is one AI origin's picture of its neighbourhood at planning time.
//
// Invariant: Origin must not be nil; neither candidate list contains Origin.
type View struct {
	Origin *world.Enclave
	// Attack holds neighbours over usable routes not owned by the origin's faction.
	Attack []*world.Enclave
	// Assist holds neighbours over usable routes owned by the origin's faction.
	Assist []*world.Enclave
	// supplyCap stands in for the forces of enemies hidden from view.
	supplyCap int
}

// Perceived returns the forces the origin believes e holds. Enemy enclaves
// hiding their forces are presumed to be at the supply cap.
func (v *View) Perceived(e *world.Enclave) int {
	if e.Hidden > 0 && e.Owner != v.Origin.Owner && v.supplyCap > 0 {
		return v.supplyCap
	}
	return world.SanitizeForces(e.Forces, 0)
}

// WeakestEnemy returns the attack candidate with the fewest perceived forces, or nil.
//
// Postcondition: ties are broken by lowest enclave id.
func (v *View) WeakestEnemy() *world.Enclave {
	return v.weakest(v.Attack)
}

// WeakestAlly returns the assist candidate with the fewest forces, or nil.
//
// Postcondition: ties are broken by lowest enclave id.
func (v *View) WeakestAlly() *world.Enclave {
	return v.weakest(v.Assist)
}

func (v *View) weakest(es []*world.Enclave) *world.Enclave {
	var best *world.Enclave
	for _, e := range es {
		if best == nil {
			best = e
			continue
		}
		fe, fb := v.Perceived(e), v.Perceived(best)
		if fe < fb || (fe == fb && e.ID < best.ID) {
			best = e
		}
	}
	return best
}
