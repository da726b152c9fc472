// Package turn sequences one turn of resolution: AI planning, the attack,
// assist and hold resolvers, the hazard engine and the ambient trigger,
// then end-of-turn upkeep and the game-over check.
package turn

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/ai"
	"github.com/cory-johannsen/enclaves/internal/game/combat"
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/hazard"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// Trigger spawns a named hazard at a named cell in place of the ambient roll.
type Trigger struct {
	Profile string `json:"profile"`
	Cell    int    `json:"cell"`
}

// Input is everything a turn consumes besides the snapshot.
type Input struct {
	// Orders are the pending orders of both factions, at most one per origin.
	Orders  world.Orders `json:"orders"`
	Trigger *Trigger     `json:"trigger,omitempty"`
}

// Result is the outcome of one resolved turn.
type Result struct {
	Snapshot    *world.Snapshot
	Events      []event.Event
	SideEffects []event.SideEffect
	// Resolved are the orders that entered resolution after AI planning and
	// order-lock filtering.
	Resolved world.Orders
	// AIActions are the deltas the AI applied to the pending orders.
	AIActions []ai.Action
	// Cancelled lists enclaves whose orders a hazard cancelled or locked.
	Cancelled []int
}

// Orchestrator resolves turns. It is not safe for concurrent use: exactly
// one resolution runs at a time.
type Orchestrator struct {
	resolver  *combat.Resolver
	hazards   *hazard.Engine
	planners  *ai.Registry
	supplyCap int
	logger    *zap.Logger
}

// New creates an Orchestrator. planners may be nil when no faction is AI-controlled.
//
// Precondition: resolver and hazards must not be nil; supplyCap >= 1.
func New(resolver *combat.Resolver, hazards *hazard.Engine, planners *ai.Registry, supplyCap int, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		resolver:  resolver,
		hazards:   hazards,
		planners:  planners,
		supplyCap: supplyCap,
		logger:    logger,
	}
}

// Resolve runs one turn against snap.
//
// Precondition: snap must not be nil.
// Postcondition: snap and in.Orders are not mutated. A finished game is
// returned unchanged with no events. The returned snapshot has Turn ==
// snap.Turn+1, every enclave's forces in [0, supply cap], and no owned
// enclave at zero forces.
func (o *Orchestrator) Resolve(snap *world.Snapshot, in Input) Result {
	if snap.GameOver {
		return Result{Snapshot: snap}
	}
	q := event.NewQueue(snap.Turn, snap.Map)

	orders := in.Orders.Clone()
	actions := o.planners.Plan(snap.Enclaves, snap.Routes, orders, snap.Turn)
	orders = ai.Apply(orders, actions)
	orders = o.dropLocked(snap.Enclaves, orders)

	board := combat.Input{Enclaves: snap.Enclaves, Routes: snap.Routes, Orders: orders, Turn: snap.Turn}
	board.Enclaves = o.resolver.Attack(board, q)
	board.Enclaves = o.resolver.Assist(board, q)
	board.Enclaves = o.resolver.Hold(board, q)

	enclaves, routes := expire(board.Enclaves, snap.Routes)

	hz := o.hazards.Advance(hazard.State{
		Turn:     snap.Turn,
		Map:      snap.Map,
		Enclaves: enclaves,
		Routes:   routes,
		Markers:  snap.Markers,
		Hazards:  snap.Hazards,
	}, q)

	markers := hz.Markers
	if in.Trigger != nil {
		m, err := o.hazards.Spawn(in.Trigger.Profile, in.Trigger.Cell)
		if err != nil {
			o.logger.Warn("scripted hazard trigger ignored",
				zap.String("profile", in.Trigger.Profile),
				zap.Int("cell", in.Trigger.Cell),
				zap.Error(err),
			)
		} else {
			markers = append(markers, m)
		}
	} else {
		markers = append(markers, o.hazards.Ambient(hazard.State{
			Turn:     snap.Turn,
			Map:      snap.Map,
			Enclaves: hz.Enclaves,
			Hazards:  snap.Hazards,
		}, q)...)
	}

	next := &world.Snapshot{
		Turn:     snap.Turn + 1,
		Enclaves: normalize(hz.Enclaves, o.supplyCap),
		Routes:   hz.Routes,
		Markers:  markers,
		Hazards:  snap.Hazards,
		Map:      snap.Map,
	}
	checkGameOver(next)

	o.logger.Debug("turn resolved",
		zap.Int("turn", snap.Turn),
		zap.Int("orders", len(orders)),
		zap.Int("events", len(q.Events())),
		zap.Int("markers", len(markers)),
		zap.Bool("game_over", next.GameOver),
	)
	return Result{
		Snapshot:    next,
		Events:      q.Events(),
		SideEffects: q.SideEffects(),
		Resolved:    orders,
		AIActions:   actions,
		Cancelled:   hz.Cancelled,
	}
}

// dropLocked removes orders whose origin is under an order lock.
func (o *Orchestrator) dropLocked(enclaves map[int]*world.Enclave, orders world.Orders) world.Orders {
	for id := range orders {
		if e, ok := enclaves[id]; ok && e.OrderLock > 0 {
			o.logger.Debug("order dropped: origin locked", zap.Int("origin", id), zap.Int("turns", e.OrderLock))
			delete(orders, id)
		}
	}
	return orders
}

// expire counts down route disables and enclave order locks and hides.
// It runs after the order phase, so a counter set by this turn's hazards
// covers exactly that many following turns.
func expire(enclaves map[int]*world.Enclave, routes []world.Route) (map[int]*world.Enclave, []world.Route) {
	d := world.NewDraft(enclaves)
	for _, id := range d.IDs() {
		e, _ := d.Get(id)
		if e.OrderLock <= 0 && e.Hidden <= 0 {
			continue
		}
		edit, _ := d.Edit(id)
		if edit.OrderLock > 0 {
			edit.OrderLock--
		}
		if edit.Hidden > 0 {
			edit.Hidden--
		}
	}

	var out []world.Route
	for i, r := range routes {
		if r.DisabledTurns <= 0 {
			continue
		}
		if out == nil {
			out = append([]world.Route(nil), routes...)
		}
		out[i].DisabledTurns--
	}
	if out == nil {
		out = routes
	}
	return d.Commit(), out
}

// normalize clamps forces into [0, cap] and releases owned enclaves left at zero.
func normalize(enclaves map[int]*world.Enclave, supplyCap int) map[int]*world.Enclave {
	d := world.NewDraft(enclaves)
	for _, id := range d.IDs() {
		e, _ := d.Get(id)
		forces := world.SanitizeForces(e.Forces, supplyCap)
		if forces == e.Forces && !(e.Owned() && forces == 0) {
			continue
		}
		edit, _ := d.Edit(id)
		edit.Forces = forces
		if forces == 0 {
			edit.Owner = world.Neutral
		}
	}
	return d.Commit()
}

// checkGameOver ends the game when a faction holds no enclaves. The other
// faction wins; if neither holds any, the game ends without a winner.
func checkGameOver(s *world.Snapshot) {
	a, b := s.Count(world.FactionA), s.Count(world.FactionB)
	switch {
	case a == 0 && b == 0:
		s.GameOver, s.Winner = true, world.Neutral
	case a == 0:
		s.GameOver, s.Winner = true, world.FactionB
	case b == 0:
		s.GameOver, s.Winner = true, world.FactionA
	}
}
