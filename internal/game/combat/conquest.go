package combat

import (
	"math"
	"sort"

	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Attacker is one committed force in a contested target's battle.
type Attacker struct {
	Origin int
	Owner  world.Faction
	// Units is the number of forces that left the origin.
	Units int
	// Power is floor(Units * combat modifier) + 1 + Bonus.
	Power int
	// Bonus is the fixed birthright attack bonus.
	Bonus int
}

// Battle is the input to ResolveConquest.
type Battle struct {
	Defender  world.Faction
	Forces    int
	Attackers []Attacker
	SupplyCap int
	// CombatModifier returns the current combat modifier of an origin enclave.
	// A nil func means 1.0 for every origin.
	CombatModifier func(origin int) float64
}

// ConquestResult is the post-battle state of the target.
type ConquestResult struct {
	Owner  world.Faction
	Forces int
	// Captured reports that Owner differs from the defender.
	Captured bool
	// Survivors are the multi-attacker units left after damage allocation, in allocation order.
	Survivors []Attacker
}

// Power returns floor(units * modifier) + 1 + bonus.
//
// Postcondition: Returns >= 1 + bonus for units >= 0 and modifier >= 0.
func Power(units int, modifier float64, bonus int) int {
	return int(math.Floor(float64(units)*modifier)) + 1 + bonus
}

// ResolveConquest runs the battle for one contested target.
//
// The defender survives when total power does not exceed its forces. A lone
// attacker keeps power minus the defender's forces. Several attackers share
// the defender's forces as damage in proportion to their committed units,
// then the surviving factions are compared by recomputed power.
//
// Postcondition: result.Forces >= 0; a captured target holds at most b.SupplyCap.
func ResolveConquest(b Battle) ConquestResult {
	d := world.SanitizeForces(b.Forces, 0)
	total := 0
	for _, a := range b.Attackers {
		total += a.Power
	}
	if len(b.Attackers) == 0 || total <= d {
		return ConquestResult{Owner: b.Defender, Forces: d - total}
	}

	if len(b.Attackers) == 1 {
		a := b.Attackers[0]
		surviving := a.Power - d
		if surviving <= 0 {
			return settle(b.Defender, world.Neutral, 0)
		}
		return settle(b.Defender, a.Owner, world.Clamp(surviving, 1, b.SupplyCap))
	}

	survivors := allocateDamage(b.Attackers, d)
	if len(survivors) == 0 {
		return settle(b.Defender, world.Neutral, 0)
	}

	mod := b.CombatModifier
	if mod == nil {
		mod = func(int) float64 { return 1 }
	}
	type tally struct {
		faction world.Faction
		power   int
		units   int
	}
	byFaction := make(map[world.Faction]*tally)
	var order []*tally
	for i := range survivors {
		s := &survivors[i]
		s.Power = Power(s.Units, mod(s.Origin), s.Bonus)
		t, ok := byFaction[s.Owner]
		if !ok {
			t = &tally{faction: s.Owner}
			byFaction[s.Owner] = t
			order = append(order, t)
		}
		t.power += s.Power
		t.units += s.Units
	}

	if len(order) == 1 {
		res := settle(b.Defender, order[0].faction, world.Clamp(order[0].units, 1, b.SupplyCap))
		res.Survivors = survivors
		return res
	}

	sort.SliceStable(order, func(i, j int) bool { return order[i].power > order[j].power })
	top := order[0]
	otherPower, otherUnits := 0, 0
	for _, t := range order[1:] {
		otherPower += t.power
		otherUnits += t.units
	}
	var res ConquestResult
	if remaining := top.units - otherUnits; top.power > otherPower && remaining > 0 {
		res = settle(b.Defender, top.faction, world.Clamp(remaining, 1, b.SupplyCap))
	} else {
		res = settle(b.Defender, world.Neutral, 0)
	}
	res.Survivors = survivors
	return res
}

// allocateDamage spreads d damage across attackers in proportion to their
// committed units and returns those with units left. The rounding remainder
// goes to the largest contributor; a unit count pushed below zero by it is
// clamped to zero.
func allocateDamage(attackers []Attacker, d int) []Attacker {
	sorted := append([]Attacker(nil), attackers...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Units != sorted[j].Units {
			return sorted[i].Units > sorted[j].Units
		}
		return sorted[i].Origin < sorted[j].Origin
	})

	totalUnits := 0
	for _, a := range sorted {
		totalUnits += a.Units
	}
	if totalUnits == 0 {
		return nil
	}

	damage := make([]int, len(sorted))
	budget := d
	for i, a := range sorted {
		damage[i] = int(math.Round(float64(d) * float64(a.Units) / float64(totalUnits)))
		budget -= damage[i]
	}
	damage[0] += budget

	var survivors []Attacker
	for i, a := range sorted {
		a.Units -= damage[i]
		if a.Units < 0 {
			a.Units = 0
		}
		if a.Units > 0 {
			survivors = append(survivors, a)
		}
	}
	return survivors
}

func settle(defender, owner world.Faction, forces int) ConquestResult {
	return ConquestResult{Owner: owner, Forces: forces, Captured: owner != defender}
}
