// Package ai implements the greedy decision engine that issues orders for
// computer-controlled factions.
//
// Every turn the planner recomputes one decision per owned enclave and
// diffs it against the faction's standing orders, so an unchanged board
// produces no actions.
package ai

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/config"
	"github.com/cory-johannsen/enclaves/internal/game/combat"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// ActionKind classifies a change to a faction's standing orders.
type ActionKind string

const (
	ActionIssue  ActionKind = "issue"
	ActionChange ActionKind = "change"
	ActionCancel ActionKind = "cancel"
)

// Action is one delta against the standing orders.
//
// Order is the new order for issue and change; Previous is the replaced
// order for change and cancel.
type Action struct {
	Kind     ActionKind
	Origin   int
	Order    world.Order
	Previous world.Order
}

// Power estimates attack power and assist share for an enclave.
// *combat.Resolver satisfies it.
type Power interface {
	ProjectedPower(e *world.Enclave, turn int) int
	AssistShare(e *world.Enclave) int
}

// Planner decides orders for one faction.
type Planner struct {
	faction world.Faction
	cfg     config.EngineConfig
	power   Power
	logger  *zap.Logger
}

// NewPlanner creates a Planner for faction.
//
// Precondition: power must not be nil; faction must be FactionA or FactionB.
func NewPlanner(faction world.Faction, cfg config.EngineConfig, power Power, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{faction: faction, cfg: cfg, power: power, logger: logger}
}

// Faction returns the faction this planner controls.
func (p *Planner) Faction() world.Faction { return p.faction }

// Decide computes the order each of the faction's enclaves should hold this
// turn. Enclaves absent from the result hold.
//
// Postcondition: every returned order has Faction == p.Faction() and an
// origin owned by that faction with forces > 0 and no order lock.
func (p *Planner) Decide(enclaves map[int]*world.Enclave, routes []world.Route, turn int) world.Orders {
	out := make(world.Orders)
	for _, id := range world.SortedIDs(enclaves) {
		e := enclaves[id]
		if e.Owner != p.faction || e.Forces <= 0 || e.OrderLock > 0 {
			continue
		}
		v, _ := BuildView(enclaves, routes, id, p.cfg.SupplyCap)
		if ord, ok := p.decide(v, turn); ok {
			out[id] = ord
		}
	}
	return out
}

func (p *Planner) decide(v *View, turn int) (world.Order, bool) {
	o := v.Origin
	if target := v.WeakestEnemy(); target != nil && o.Forces > 2 {
		if p.power.ProjectedPower(o, turn) >= v.Perceived(target) {
			return world.Order{Origin: o.ID, Target: target.ID, Type: world.OrderAttack, Faction: p.faction}, true
		}
	}
	if ally := v.WeakestAlly(); ally != nil && ally.Forces < p.cfg.DangerThreshold && o.Forces >= p.cfg.AssistMinForces {
		send := p.power.AssistShare(o)
		if send > 0 && o.Forces-send > send {
			return world.Order{Origin: o.ID, Target: ally.ID, Type: world.OrderAssist, Faction: p.faction}, true
		}
	}
	return world.Order{}, false
}

// Plan decides this turn's orders and returns the minimal set of actions
// that turns standing into them.
//
// Postcondition: Plan on a board where Apply(standing, Plan(...)) was
// already applied returns no actions.
func (p *Planner) Plan(enclaves map[int]*world.Enclave, routes []world.Route, standing world.Orders, turn int) []Action {
	actions := Diff(p.faction, standing, p.Decide(enclaves, routes, turn))
	if len(actions) > 0 {
		p.logger.Debug("ai planned",
			zap.String("faction", p.faction.String()),
			zap.Int("actions", len(actions)),
		)
	}
	return actions
}

// Diff compares faction's standing orders with its new decisions.
//
// Postcondition: actions are ordered by ascending origin; no action is
// emitted for an origin whose order is unchanged.
func Diff(faction world.Faction, standing, decided world.Orders) []Action {
	origins := make(map[int]bool)
	for id, ord := range standing {
		if ord.Faction == faction {
			origins[id] = true
		}
	}
	for id := range decided {
		origins[id] = true
	}
	var actions []Action
	for _, id := range world.SortedIDs(origins) {
		prev, had := standing[id]
		had = had && prev.Faction == faction
		next, want := decided[id]
		switch {
		case want && !had:
			actions = append(actions, Action{Kind: ActionIssue, Origin: id, Order: next})
		case want && had && (prev.Target != next.Target || prev.Type != next.Type):
			actions = append(actions, Action{Kind: ActionChange, Origin: id, Order: next, Previous: prev})
		case !want && had:
			actions = append(actions, Action{Kind: ActionCancel, Origin: id, Previous: prev})
		}
	}
	return actions
}

// Apply returns standing with actions applied. standing is not mutated.
func Apply(standing world.Orders, actions []Action) world.Orders {
	out := standing.Clone()
	for _, a := range actions {
		switch a.Kind {
		case ActionIssue, ActionChange:
			out[a.Origin] = a.Order
		case ActionCancel:
			delete(out, a.Origin)
		}
	}
	return out
}

var _ Power = (*combat.Resolver)(nil)
