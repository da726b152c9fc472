// Package hazard runs the environmental hazard phase machine: map-level
// markers progressing through alert, impact and aftermath, the per-enclave
// effects they leave behind, self-propelled hazards, and the ambient trigger.
package hazard

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/interpreter"
	"github.com/cory-johannsen/enclaves/internal/game/rules"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/scripting"
)

// Hooks dispatches per-profile continuous scripts. A handled call replaces
// the effect's default continuous rules for that turn.
type Hooks interface {
	Continuous(key string, info scripting.EffectInfo) (delta int, handled bool)
}

// Engine advances hazards once per turn. It holds no per-match state; every
// call reads a State and returns a new one.
type Engine struct {
	registry     *Registry
	interp       *interpreter.Interpreter
	roller       *dice.Roller
	hooks        Hooks
	hazardChance float64
	supplyCap    int
	logger       *zap.Logger
}

// Config carries the engine tunables.
type Config struct {
	HazardChance float64
	SupplyCap    int
}

// NewEngine creates an Engine. hooks may be nil.
//
// Precondition: registry and src must be non-nil; cfg.SupplyCap >= 1.
func NewEngine(registry *Registry, src dice.Source, hooks Hooks, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:     registry,
		interp:       interpreter.New(src, cfg.SupplyCap, logger),
		roller:       dice.NewLoggedRoller(src, logger),
		hooks:        hooks,
		hazardChance: cfg.HazardChance,
		supplyCap:    cfg.SupplyCap,
		logger:       logger,
	}
}

// State is the slice of the board the hazard engine reads and writes.
type State struct {
	Turn     int
	Map      *world.Map
	Enclaves map[int]*world.Enclave
	Routes   []world.Route
	Markers  []world.Marker
	// Hazards lists the profiles the ambient trigger may spawn.
	Hazards []string
}

// Result is the State after hazard processing.
type Result struct {
	Enclaves map[int]*world.Enclave
	Routes   []world.Route
	Markers  []world.Marker
	// Cancelled lists enclaves whose pending orders a rule cancelled.
	Cancelled []int
}

// pass is the working state of one Advance call.
type pass struct {
	e         *Engine
	turn      int
	m         *world.Map
	base      map[int]*world.Enclave
	draft     *world.Draft
	routes    []world.Route
	spawned   []world.Marker
	cancelled []int
	q         *event.Queue
}

// Advance runs the continuous, marker and effect passes in that order.
//
// Postcondition: st is not mutated. Unknown profiles are logged and their
// markers and effects dropped.
func (e *Engine) Advance(st State, q *event.Queue) Result {
	p := &pass{
		e:      e,
		turn:   st.Turn,
		m:      st.Map,
		base:   st.Enclaves,
		draft:  world.NewDraft(st.Enclaves),
		routes: st.Routes,
		q:      q,
	}
	if p.m == nil {
		p.m = &world.Map{}
	}

	p.continuousPass()
	markers := p.markerPass(st.Markers)
	p.effectPass()

	return Result{
		Enclaves:  p.draft.Commit(),
		Routes:    p.routes,
		Markers:   append(markers, p.spawned...),
		Cancelled: p.cancelled,
	}
}

// Spawn creates a pending marker of profile at cell. The marker enters its
// first phase on the next Advance.
func (e *Engine) Spawn(profile string, cell int) (world.Marker, error) {
	if _, ok := e.registry.Get(profile); !ok {
		return world.Marker{}, ErrUnknownProfile
	}
	return world.Marker{
		InstanceID: e.newInstanceID(),
		ProfileKey: profile,
		Cell:       cell,
	}, nil
}

// Ambient rolls the hazard chance once and, on success, spawns a marker of
// a random allowed profile at a random eligible cell.
//
// Postcondition: Returns at most one marker.
func (e *Engine) Ambient(st State, q *event.Queue) []world.Marker {
	if st.Map == nil || !e.roller.Chance("ambient hazard", e.hazardChance) {
		return nil
	}
	var allowed []*Profile
	for _, key := range st.Hazards {
		if p, ok := e.registry.Get(key); ok {
			allowed = append(allowed, p)
			continue
		}
		e.logger.Warn("ambient hazard profile not registered", zap.String("profile", key))
	}
	if len(allowed) == 0 {
		return nil
	}
	p := allowed[dice.Pick(e.roller, len(allowed))]
	cells := st.Map.CellIDs()
	if p.Eligible != "any" {
		cells = st.Map.LandCells()
	}
	if len(cells) == 0 {
		return nil
	}
	cell := cells[dice.Pick(e.roller, len(cells))]
	marker, _ := e.Spawn(p.Key, cell)
	e.logger.Info("hazard spawned",
		zap.String("profile", p.Key),
		zap.Int("cell", cell),
		zap.Int("turn", st.Turn),
	)
	if target, ok := world.EnclaveAt(st.Enclaves, cell); ok {
		q.Emit(event.Event{Kind: event.KindHazard, Target: target, Profile: p.Key})
	}
	return []world.Marker{marker}
}

// newInstanceID derives a v4 UUID from the engine's source so that replays
// reproduce instance ids.
func (e *Engine) newInstanceID() uuid.UUID {
	id, err := uuid.NewRandomFromReader(dice.NewReader(e.roller))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// apply runs rs against enclave id and folds the outcome into the pass.
func (p *pass) apply(rs []rules.Rule, id int) {
	if len(rs) == 0 {
		return
	}
	cur, ok := p.draft.Get(id)
	if !ok {
		p.e.logger.Warn("hazard target missing", zap.Int("enclave", id))
		return
	}
	out := p.e.interp.Apply(rs, interpreter.Target{
		Enclave:    cur,
		Routes:     p.routes,
		Neighbours: world.AdjacentEnclaves(p.m, p.base, id),
		Turn:       p.turn,
	})
	p.draft.Put(out.Enclave)
	if out.RoutesChanged {
		p.routes = out.Routes
	}
	if out.CancelOrders {
		p.cancelled = append(p.cancelled, id)
	}
	for _, s := range out.Summons {
		if m, err := p.e.Spawn(s.Profile, s.Cell); err == nil {
			p.spawned = append(p.spawned, m)
		} else {
			p.e.logger.Warn("summoned hazard profile not registered", zap.String("profile", s.Profile))
		}
	}
	if out.Grant > 0 {
		p.grant(out.GrantFaction, out.Grant)
	}
}

// grant adds n forces to the lowest-id capital owned by f.
func (p *pass) grant(f world.Faction, n int) {
	for _, id := range p.draft.IDs() {
		e, _ := p.draft.Get(id)
		if !e.Capital || e.Owner != f {
			continue
		}
		edit, _ := p.draft.Edit(id)
		edit.Forces = world.SanitizeForces(edit.Forces+n, p.e.supplyCap)
		return
	}
	p.e.logger.Debug("no capital to receive granted forces", zap.String("faction", f.String()))
}

// attach appends eff to enclave id.
func (p *pass) attach(id int, eff world.ActiveEffect) {
	edit, ok := p.draft.Edit(id)
	if !ok {
		return
	}
	edit.Effects = append(edit.Effects, eff)
}

func (p *pass) profile(key string) (*Profile, bool) {
	prof, ok := p.e.registry.Get(key)
	if !ok {
		p.e.logger.Warn("unknown hazard profile dropped", zap.String("profile", key), zap.Int("turn", p.turn))
	}
	return prof, ok
}

// targets returns the enclaves whose territory lies within radius of cell.
func (p *pass) targets(cell int, radius Radius) []int {
	return world.EnclavesTouching(p.base, p.m.Within(cell, radius.Value()))
}
