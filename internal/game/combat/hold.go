package combat

import (
	"math"

	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/interpreter"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Reinforcement returns the hold reinforcement e earns this turn:
// floor((flat + birthright bonus) * production modifier).
//
// Postcondition: Returns >= 0.
func (r *Resolver) Reinforcement(e *world.Enclave, turn int) int {
	base := r.cfg.HoldReinforcement + r.birthrights.For(e).HoldBonus(e)
	n := int(math.Floor(float64(base) * interpreter.ModifiersOf(e, turn).Production))
	if n < 0 {
		return 0
	}
	return n
}

// Hold reinforces every owned enclave that has no order this turn.
// Enclaves earning zero reinforcement are left untouched.
func (r *Resolver) Hold(in Input, q *event.Queue) map[int]*world.Enclave {
	d := world.NewDraft(in.Enclaves)
	for _, id := range d.IDs() {
		e, _ := d.Get(id)
		if !e.Owned() {
			continue
		}
		if _, ordered := in.Orders[id]; ordered {
			continue
		}
		gain := r.Reinforcement(e, in.Turn)
		if gain == 0 {
			continue
		}
		edit, _ := d.Edit(id)
		edit.Forces = world.SanitizeForces(edit.Forces+gain, r.cfg.SupplyCap)
		q.Emit(event.Event{
			Kind:      event.KindHold,
			Target:    id,
			Faction:   edit.Owner,
			Forces:    gain,
			Archetype: edit.Archetype,
		})
	}
	return d.Commit()
}
