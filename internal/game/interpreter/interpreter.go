// Package interpreter applies hazard rules to enclaves and routes.
//
// Apply is the instantaneous form, run when a hazard phase begins or a
// continuous effect ticks. Modifiers is the continuous form, read every turn
// by the attack and hold resolvers.
package interpreter

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/rules"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Interpreter evaluates rule lists against an enclave. All randomness is
// drawn from the injected source.
type Interpreter struct {
	roller    *dice.Roller
	supplyCap int
	logger    *zap.Logger
}

// New creates an Interpreter.
//
// Precondition: src must be non-nil; supplyCap must be >= 1.
func New(src dice.Source, supplyCap int, logger *zap.Logger) *Interpreter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interpreter{
		roller:    dice.NewLoggedRoller(src, logger),
		supplyCap: supplyCap,
		logger:    logger,
	}
}

// Target is the snapshot a rule list is applied to.
type Target struct {
	Enclave *world.Enclave
	Routes  []world.Route
	// Neighbours are the enclaves bordering Enclave on the cell graph;
	// createRoutes picks its new endpoints from them.
	Neighbours []int
	Turn       int
}

// Summon requests a new hazard marker.
type Summon struct {
	Profile string
	Cell    int
}

// Outcome is the result of an instantaneous application.
type Outcome struct {
	// Enclave is a private clone carrying every enclave-level change.
	Enclave *world.Enclave
	// Routes is the input slice when RoutesChanged is false, otherwise a new slice.
	Routes        []world.Route
	RoutesChanged bool
	Summons       []Summon
	// Grant forces are owed to GrantFaction's capital.
	Grant        int
	GrantFaction world.Faction
	CancelOrders bool
}

// Apply interprets rs against t in list order. Later rules observe the
// changes made by earlier ones. Unknown rule kinds are ignored.
//
// Precondition: t.Enclave must be non-nil.
// Postcondition: t.Enclave and t.Routes are not mutated;
// 0 <= out.Enclave.Forces <= supply cap.
func (in *Interpreter) Apply(rs []rules.Rule, t Target) Outcome {
	e := t.Enclave.Clone()
	out := Outcome{Enclave: e, Routes: t.Routes}

	rset := &routeSet{routes: t.Routes}

	for _, r := range rs {
		if !r.Allows(envFor(e, t.Turn)) {
			continue
		}
		switch r.Kind {
		case rules.KindForceDamage:
			dmg := r.Amount.ResolveOr(in.roller, 0)
			if r.Percent != nil {
				pct := r.Percent.Resolve(in.roller)
				dmg += e.Forces * pct / 100
			}
			e.Forces = world.SanitizeForces(e.Forces-dmg, in.supplyCap)

		case rules.KindSetForces:
			e.Forces = world.SanitizeForces(r.Amount.ResolveOr(in.roller, 0), in.supplyCap)

		case rules.KindDisableRoutes:
			turns := r.Turns.ResolveOr(in.roller, 1)
			routes := rset.edit()
			for i := range routes {
				if !routes[i].Touches(e.ID) || !routes[i].Usable() {
					continue
				}
				if !in.roller.Chance("disable route", r.Probability()) {
					continue
				}
				if turns > routes[i].DisabledTurns {
					routes[i].DisabledTurns = turns
				}
			}

		case rules.KindDestroyRoutes:
			routes := rset.edit()
			for i := range routes {
				if !routes[i].Touches(e.ID) || routes[i].Destroyed {
					continue
				}
				if in.roller.Chance("destroy route", r.Probability()) {
					routes[i].Destroyed = true
				}
			}

		case rules.KindCreateRoutes:
			in.createRoutes(r, e.ID, t.Neighbours, rset)

		case rules.KindConvert:
			to, err := world.ParseFaction(r.To)
			if err != nil {
				in.logger.Warn("convert rule has invalid faction", zap.String("to", r.To), zap.Int("enclave", e.ID))
				continue
			}
			if in.roller.Chance("convert", r.Probability()) {
				e.Owner = to
			}

		case rules.KindCancelOrders:
			if e.OrderLock < 1 {
				e.OrderLock = 1
			}
			out.CancelOrders = true

		case rules.KindLockOrders:
			if turns := r.Turns.ResolveOr(in.roller, 1); turns > e.OrderLock {
				e.OrderLock = turns
			}
			out.CancelOrders = true

		case rules.KindHideEnemyForces:
			if turns := r.Turns.ResolveOr(in.roller, 1); turns > e.Hidden {
				e.Hidden = turns
			}

		case rules.KindGrantForcesToCapital:
			if e.Owned() {
				out.Grant += r.Amount.ResolveOr(in.roller, 0)
				out.GrantFaction = e.Owner
			}

		case rules.KindSummonDisaster:
			if r.Profile != "" && in.roller.Chance("summon "+r.Profile, r.Probability()) {
				out.Summons = append(out.Summons, Summon{Profile: r.Profile, Cell: e.CellID})
			}

		case rules.KindStatModifier, rules.KindApplyAftermathOnChance, rules.KindDissipateOnNoTarget:
			// read by Modifiers and the hazard engine

		default:
			in.logger.Debug("ignoring unknown rule kind", zap.String("kind", string(r.Kind)))
		}
	}
	out.Routes = rset.routes
	out.RoutesChanged = rset.changed
	return out
}

func (in *Interpreter) createRoutes(r rules.Rule, id int, neighbours []int, set *routeSet) {
	count := r.Count
	if count <= 0 {
		count = 1
	}
	var candidates []int
	for _, n := range neighbours {
		if i, ok := world.FindRoute(set.routes, id, n); ok && !set.routes[i].Destroyed {
			continue
		}
		candidates = append(candidates, n)
	}
	for ; count > 0 && len(candidates) > 0; count-- {
		idx := dice.Pick(in.roller, len(candidates))
		n := candidates[idx]
		candidates = append(candidates[:idx], candidates[idx+1:]...)
		routes := set.edit()
		if i, ok := world.FindRoute(routes, id, n); ok {
			// a destroyed route is rebuilt in place
			routes[i] = world.Route{A: routes[i].A, B: routes[i].B}
			continue
		}
		set.routes = append(routes, world.Route{A: id, B: n})
	}
}

// routeSet clones the route slice on first write.
type routeSet struct {
	routes  []world.Route
	changed bool
}

func (s *routeSet) edit() []world.Route {
	if !s.changed {
		s.routes = append([]world.Route(nil), s.routes...)
		s.changed = true
	}
	return s.routes
}

func envFor(e *world.Enclave, turn int) rules.Env {
	return rules.Env{
		Forces:    e.Forces,
		Owner:     string(e.Owner),
		Capital:   e.Capital,
		Archetype: e.Archetype,
		Turn:      turn,
	}
}
