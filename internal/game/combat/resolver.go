// Package combat resolves the order phase of a turn: attacks (including
// multi-party conquest), assists and holds. Every resolver reads an enclave
// map and returns a new one through a copy-on-write world.Draft.
package combat

import (
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/config"
	"github.com/cory-johannsen/enclaves/internal/game/interpreter"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Presentation keys queued by the resolvers.
const (
	SFXAttack   = "sfx/attack"
	VFXAttack   = "vfx/attack"
	SFXAssist   = "sfx/assist"
	VFXAssist   = "vfx/assist"
	SFXConquest = "sfx/conquest"
	VFXConquest = "vfx/conquest"
)

// Resolver applies attack, assist and hold orders.
type Resolver struct {
	cfg         config.EngineConfig
	birthrights *Birthrights
	logger      *zap.Logger
}

// NewResolver creates a Resolver. A nil birthrights registry resolves every
// archetype to NoBirthright.
//
// Precondition: cfg.Validate() == nil.
func NewResolver(cfg config.EngineConfig, birthrights *Birthrights, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, birthrights: birthrights, logger: logger}
}

// Input is the board a resolver reads.
type Input struct {
	Enclaves map[int]*world.Enclave
	Routes   []world.Route
	Orders   world.Orders

	// Turn is the turn being resolved; rule guards read it.
	Turn int
}

// UnitsLeaving returns ceil(forces * rate).
func UnitsLeaving(forces int, rate float64) int {
	if forces <= 0 || rate <= 0 {
		return 0
	}
	return int(math.Ceil(float64(forces) * rate))
}

// ProjectedPower is the attack power e would field this turn.
func (r *Resolver) ProjectedPower(e *world.Enclave, turn int) int {
	units := UnitsLeaving(e.Forces, r.cfg.AttackRate)
	return Power(units, interpreter.ModifiersOf(e, turn).Combat, r.birthrights.For(e).AttackBonus(e))
}

// AssistShare is the number of forces an assist from e would send.
func (r *Resolver) AssistShare(e *world.Enclave) int {
	mult := r.birthrights.For(e).AssistMultiplier(e, r.cfg.AssistMultiplier)
	return UnitsLeaving(e.Forces, mult)
}

// orderValid reports whether ord can execute against d. Rejections are
// logged at warn level and never abort resolution.
func (r *Resolver) orderValid(d *world.Draft, routes []world.Route, ord world.Order) (*world.Enclave, *world.Enclave, bool) {
	origin, ok := d.Get(ord.Origin)
	if !ok {
		r.logger.Warn("order origin missing", zap.Int("origin", ord.Origin))
		return nil, nil, false
	}
	target, ok := d.Get(ord.Target)
	if !ok {
		r.logger.Warn("order target missing", zap.Int("origin", ord.Origin), zap.Int("target", ord.Target))
		return nil, nil, false
	}
	if ord.Origin == ord.Target || !origin.Owned() {
		return nil, nil, false
	}
	if ord.Faction != world.Neutral && ord.Faction != origin.Owner {
		r.logger.Debug("order faction no longer owns origin", zap.Int("origin", ord.Origin))
		return nil, nil, false
	}
	if !world.Reachable(routes, ord.Origin, ord.Target) {
		r.logger.Debug("order route unusable", zap.Int("origin", ord.Origin), zap.Int("target", ord.Target))
		return nil, nil, false
	}
	return origin, target, true
}
