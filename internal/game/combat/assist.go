package combat

import (
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

type assistDelta struct {
	order world.Order
	send  int
}

// Assist resolves every assist order in in.Orders.
//
// Transfers are computed against the untouched input map and then applied
// together, so the result is independent of order iteration. Destinations are
// clamped to the supply cap.
//
// Postcondition: when no assist executes, the returned map is in.Enclaves itself.
func (r *Resolver) Assist(in Input, q *event.Queue) map[int]*world.Enclave {
	base := world.NewDraft(in.Enclaves)
	var deltas []assistDelta
	for _, ord := range in.Orders.OfType(world.OrderAssist) {
		origin, target, ok := r.orderValid(base, in.Routes, ord)
		if !ok || target.Owner != origin.Owner {
			continue
		}
		forces := world.SanitizeForces(origin.Forces, r.cfg.SupplyCap)
		send := r.AssistShare(origin)
		if send == 0 || send > forces {
			continue
		}
		deltas = append(deltas, assistDelta{order: ord, send: send})
	}
	if len(deltas) == 0 {
		return in.Enclaves
	}

	d := world.NewDraft(in.Enclaves)
	for _, dl := range deltas {
		origin, _ := d.Edit(dl.order.Origin)
		origin.Forces = world.SanitizeForces(origin.Forces-dl.send, r.cfg.SupplyCap)
		target, _ := d.Edit(dl.order.Target)
		target.Forces = world.SanitizeForces(target.Forces+dl.send, r.cfg.SupplyCap)

		q.Emit(event.Event{
			Kind:      event.KindAssist,
			Origin:    dl.order.Origin,
			Target:    dl.order.Target,
			Faction:   origin.Owner,
			Forces:    dl.send,
			Archetype: origin.Archetype,
		})
		q.Play(target.CellID, SFXAssist, VFXAssist)
	}
	return d.Commit()
}
