package combat

import (
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/interpreter"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Attack resolves every attack order in in.Orders.
//
// Orders are processed in ascending origin order: committed units leave
// their origins first, then each contested target is resolved once against
// all attackers grouped on it, in ascending target order.
//
// Postcondition: in.Enclaves is not mutated.
func (r *Resolver) Attack(in Input, q *event.Queue) map[int]*world.Enclave {
	d := world.NewDraft(in.Enclaves)
	groups := make(map[int][]Attacker)

	for _, ord := range in.Orders.OfType(world.OrderAttack) {
		origin, target, ok := r.orderValid(d, in.Routes, ord)
		if !ok {
			continue
		}
		if target.Owner == origin.Owner {
			r.logger.Debug("attack on own enclave ignored", zap.Int("origin", ord.Origin), zap.Int("target", ord.Target))
			continue
		}
		forces := world.SanitizeForces(origin.Forces, r.cfg.SupplyCap)
		units := UnitsLeaving(forces, r.cfg.AttackRate)
		if units == 0 || units > forces {
			continue
		}
		mods := interpreter.ModifiersOf(origin, in.Turn)
		bonus := r.birthrights.For(origin).AttackBonus(origin)
		attacker := Attacker{
			Origin: ord.Origin,
			Owner:  origin.Owner,
			Units:  units,
			Power:  Power(units, mods.Combat, bonus),
			Bonus:  bonus,
		}

		edit, _ := d.Edit(ord.Origin)
		edit.Forces = forces - units
		groups[ord.Target] = append(groups[ord.Target], attacker)

		q.Emit(event.Event{
			Kind:      event.KindAttack,
			Origin:    ord.Origin,
			Target:    ord.Target,
			Faction:   origin.Owner,
			Forces:    units,
			Archetype: origin.Archetype,
		})
		q.Play(target.CellID, SFXAttack, VFXAttack)
	}

	targets := make([]int, 0, len(groups))
	for id := range groups {
		targets = append(targets, id)
	}
	sort.Ints(targets)

	for _, id := range targets {
		r.conquer(d, id, groups[id], in.Turn, q)
	}
	return d.Commit()
}

func (r *Resolver) conquer(d *world.Draft, id int, attackers []Attacker, turn int, q *event.Queue) {
	target, ok := d.Edit(id)
	if !ok {
		return
	}
	res := ResolveConquest(Battle{
		Defender:  target.Owner,
		Forces:    world.SanitizeForces(target.Forces, r.cfg.SupplyCap),
		Attackers: attackers,
		SupplyCap: r.cfg.SupplyCap,
		CombatModifier: func(origin int) float64 {
			e, _ := d.Get(origin)
			return interpreter.ModifiersOf(e, turn).Combat
		},
	})
	target.Forces = res.Forces
	if !res.Captured {
		return
	}
	archetype := ""
	for _, a := range attackers {
		if a.Owner == res.Owner {
			if e, ok := d.Get(a.Origin); ok {
				archetype = e.Archetype
			}
			break
		}
	}
	target.Owner = res.Owner
	q.Emit(event.Event{
		Kind:      event.KindConquest,
		Target:    id,
		Faction:   res.Owner,
		Forces:    res.Forces,
		NewOwner:  res.Owner,
		Archetype: archetype,
	})
	q.Play(target.CellID, SFXConquest, VFXConquest)
	r.logger.Debug("enclave conquered",
		zap.Int("enclave", id),
		zap.String("owner", res.Owner.String()),
		zap.Int("forces", res.Forces),
	)
}
