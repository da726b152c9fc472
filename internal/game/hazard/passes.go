package hazard

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/rules"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/scripting"
)

// continuousPass applies every active effect's continuous behaviour.
// Mobile effects are lifted off their hosts first so each moves exactly once.
func (p *pass) continuousPass() {
	type hosted struct {
		host int
		eff  world.ActiveEffect
	}
	var mobiles []hosted
	for _, id := range p.draft.IDs() {
		e, _ := p.draft.Get(id)
		if !hasMobile(e.Effects) {
			continue
		}
		edit, _ := p.draft.Edit(id)
		kept := edit.Effects[:0]
		for _, eff := range edit.Effects {
			if eff.Mobile {
				mobiles = append(mobiles, hosted{host: id, eff: eff})
				continue
			}
			kept = append(kept, eff)
		}
		edit.Effects = kept
	}
	for _, mh := range mobiles {
		p.drift(mh.eff)
	}

	for _, id := range p.draft.IDs() {
		e, _ := p.draft.Get(id)
		effects := append([]world.ActiveEffect(nil), e.Effects...)
		for _, eff := range effects {
			if eff.Mobile {
				continue
			}
			prof, ok := p.profile(eff.ProfileKey)
			if !ok {
				p.dropEffect(id, eff.InstanceID, eff.Phase)
				continue
			}
			if prof.Hook != "" && p.e.hooks != nil {
				cur, _ := p.draft.Get(id)
				delta, handled := p.e.hooks.Continuous(prof.Hook, scripting.EffectInfo{
					Enclave:   id,
					Owner:     string(cur.Owner),
					Forces:    cur.Forces,
					Capital:   cur.Capital,
					Profile:   eff.ProfileKey,
					Phase:     string(eff.Phase),
					Remaining: eff.Remaining,
					Turn:      p.turn,
				})
				if handled {
					edit, _ := p.draft.Edit(id)
					edit.Forces = world.SanitizeForces(edit.Forces+delta, p.e.supplyCap)
					continue
				}
			}
			if needsApply(eff.Continuous) {
				p.apply(eff.Continuous, id)
			}
		}
	}
}

// drift moves one mobile effect: damage at its cell once per turn, then
// migrate to a random adjacent land cell held by an enclave.
func (p *pass) drift(eff world.ActiveEffect) {
	prof, ok := p.profile(eff.ProfileKey)
	if !ok {
		return
	}
	damage := eff.Continuous
	if idx := prof.PhaseIndex(world.PhaseImpact); idx >= 0 {
		damage = prof.Phases[idx].Instant
	}
	host, ok := world.EnclaveAt(p.base, eff.Cell)
	if !ok {
		p.e.logger.Warn("mobile hazard lost its host", zap.String("profile", eff.ProfileKey), zap.Int("cell", eff.Cell))
		return
	}

	if eff.AppliedTurn != p.turn {
		p.apply(damage, host)
		eff.AppliedTurn = p.turn
		p.emit(host, eff.ProfileKey, world.PhaseAftermath)
	}

	candidates := p.landNeighbours(eff.Cell)
	if len(candidates) == 0 {
		if rules.Has(eff.Continuous, rules.KindDissipateOnNoTarget) || p.aftermathDissipates(prof) {
			p.e.logger.Debug("mobile hazard dissipated", zap.String("profile", eff.ProfileKey), zap.Int("cell", eff.Cell))
			return
		}
		p.apply(damage, host)
		eff.MovesLeft--
	} else {
		eff.Cell = candidates[dice.Pick(p.e.roller, len(candidates))]
		eff.MovesLeft--
	}
	eff.Remaining = eff.MovesLeft
	if eff.MovesLeft <= 0 {
		return
	}
	next, ok := world.EnclaveAt(p.base, eff.Cell)
	if !ok {
		return
	}
	p.attach(next, eff)
	if cell, ok := p.m.Cells[eff.Cell]; ok {
		ph := prof.Phases[prof.PhaseIndex(world.PhaseAftermath)]
		p.q.Play(cell.ID, ph.SFX, ph.VFX)
	}
}

func (p *pass) aftermathDissipates(prof *Profile) bool {
	idx := prof.PhaseIndex(world.PhaseAftermath)
	return idx >= 0 && rules.Has(prof.Phases[idx].Instant, rules.KindDissipateOnNoTarget)
}

// landNeighbours returns the land cells adjacent to cell that belong to an enclave.
func (p *pass) landNeighbours(cell int) []int {
	c, ok := p.m.Cells[cell]
	if !ok {
		return nil
	}
	var out []int
	for _, n := range c.Neighbors {
		nc, ok := p.m.Cells[n]
		if !ok || !nc.Land {
			continue
		}
		if _, held := world.EnclaveAt(p.base, n); held {
			out = append(out, n)
		}
	}
	return out
}

// markerPass advances every map-level marker. A pending marker enters its
// first phase without decrementing; entering impact or the final phase
// retires the marker, leaving its effects to carry the lineage.
func (p *pass) markerPass(markers []world.Marker) []world.Marker {
	var out []world.Marker
	for _, m := range markers {
		m.Hit = append([]int(nil), m.Hit...)
		prof, ok := p.profile(m.ProfileKey)
		if !ok {
			continue
		}
		switch {
		case !m.Entered:
			m.Entered = true
			if p.enterPhase(&m, prof, 0) {
				out = append(out, m)
			}
		case m.Remaining == world.Permanent:
			out = append(out, m)
		default:
			m.Remaining--
			if m.Remaining > 0 {
				out = append(out, m)
				continue
			}
			next := m.PhaseIndex + 1
			if next >= len(prof.Phases) {
				continue
			}
			if p.enterPhase(&m, prof, next) {
				out = append(out, m)
			}
		}
	}
	return out
}

// enterPhase applies phase idx across the marker's radius and attaches the
// phase's effect to every enclave hit. It reports whether the marker lives on.
func (p *pass) enterPhase(m *world.Marker, prof *Profile, idx int) bool {
	ph := prof.Phases[idx]
	m.PhaseIndex = idx
	m.Remaining = ph.Duration.Resolve(p.e.roller)
	m.Hit = p.targets(m.Cell, ph.Radius)

	for _, id := range m.Hit {
		p.apply(ph.Instant, id)
		p.attach(id, world.ActiveEffect{
			InstanceID: m.InstanceID,
			ProfileKey: prof.Key,
			Phase:      ph.Phase,
			Remaining:  m.Remaining,
			Continuous: ph.Continuous,
			OriginCell: m.Cell,
		})
		p.emit(id, prof.Key, ph.Phase)
	}
	p.q.Play(m.Cell, ph.SFX, ph.VFX)
	p.e.logger.Debug("hazard phase entered",
		zap.String("profile", prof.Key),
		zap.String("phase", string(ph.Phase)),
		zap.Int("cell", m.Cell),
		zap.Int("hit", len(m.Hit)),
	)
	return ph.Phase != world.PhaseImpact && idx < len(prof.Phases)-1
}

type expiry struct {
	instance uuid.UUID
	profile  string
	origin   int
	host     int
}

// effectPass decrements every stationary effect. Impact effects reaching
// zero spawn their profile's aftermath once per instance.
func (p *pass) effectPass() {
	var expired []expiry
	seen := make(map[uuid.UUID]bool)
	for _, id := range p.draft.IDs() {
		e, _ := p.draft.Get(id)
		if len(e.Effects) == 0 {
			continue
		}
		edit, _ := p.draft.Edit(id)
		kept := edit.Effects[:0]
		for _, eff := range edit.Effects {
			if eff.Mobile || eff.Remaining == world.Permanent {
				kept = append(kept, eff)
				continue
			}
			eff.Remaining--
			if eff.Remaining > 0 {
				kept = append(kept, eff)
				continue
			}
			if eff.Phase == world.PhaseImpact && !seen[eff.InstanceID] {
				seen[eff.InstanceID] = true
				expired = append(expired, expiry{instance: eff.InstanceID, profile: eff.ProfileKey, origin: eff.OriginCell, host: id})
			}
		}
		edit.Effects = kept
	}
	for _, x := range expired {
		p.spawnAftermath(x)
	}
}

func (p *pass) spawnAftermath(x expiry) {
	prof, ok := p.profile(x.profile)
	if !ok {
		return
	}
	idx := prof.PhaseIndex(world.PhaseAftermath)
	if idx < 0 {
		return
	}
	ph := prof.Phases[idx]
	dur := ph.Duration.Resolve(p.e.roller)
	gate, gated := rules.Find(ph.Instant, rules.KindApplyAftermathOnChance)

	if prof.Mobile {
		if gated && !p.e.roller.Chance("aftermath "+prof.Key, gate.Probability()) {
			return
		}
		host, _ := p.draft.Get(x.host)
		p.attach(x.host, world.ActiveEffect{
			InstanceID: x.instance,
			ProfileKey: prof.Key,
			Phase:      world.PhaseAftermath,
			Remaining:  dur,
			Continuous: ph.Continuous,
			OriginCell: x.origin,
			Mobile:     true,
			Cell:       host.CellID,
			MovesLeft:  dur,
		})
		p.emit(x.host, prof.Key, world.PhaseAftermath)
		p.q.Play(host.CellID, ph.SFX, ph.VFX)
		return
	}

	for _, id := range p.targets(x.origin, ph.Radius) {
		if gated && !p.e.roller.Chance("aftermath "+prof.Key, gate.Probability()) {
			continue
		}
		p.apply(ph.Instant, id)
		p.attach(id, world.ActiveEffect{
			InstanceID: x.instance,
			ProfileKey: prof.Key,
			Phase:      world.PhaseAftermath,
			Remaining:  dur,
			Continuous: ph.Continuous,
			OriginCell: x.origin,
		})
		p.emit(id, prof.Key, world.PhaseAftermath)
	}
	p.q.Play(x.origin, ph.SFX, ph.VFX)
}

// dropEffect removes the effect identified by instance and phase from enclave id.
func (p *pass) dropEffect(id int, instance uuid.UUID, phase world.Phase) {
	edit, ok := p.draft.Edit(id)
	if !ok {
		return
	}
	kept := edit.Effects[:0]
	for _, eff := range edit.Effects {
		if eff.InstanceID == instance && eff.Phase == phase {
			continue
		}
		kept = append(kept, eff)
	}
	edit.Effects = kept
}

func (p *pass) emit(id int, profile string, phase world.Phase) {
	e, _ := p.draft.Get(id)
	ev := event.Event{Kind: event.KindHazard, Target: id, Profile: profile, Phase: phase}
	if e != nil {
		ev.Faction = e.Owner
		ev.Forces = e.Forces
	}
	p.q.Emit(ev)
}

func hasMobile(effects []world.ActiveEffect) bool {
	for _, eff := range effects {
		if eff.Mobile {
			return true
		}
	}
	return false
}

// needsApply reports whether rs holds anything beyond stat modifiers, which
// are read by interpreter.ModifiersOf instead.
func needsApply(rs []rules.Rule) bool {
	for _, r := range rs {
		if r.Kind != rules.KindStatModifier {
			return true
		}
	}
	return false
}
