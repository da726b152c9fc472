// Package gameserver hosts a running match: it holds the current snapshot
// and pending orders, validates player input, resolves turns on a timer or
// on demand, journals every turn and publishes updates to subscribers.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/observability"
)

var (
	// ErrInvalidOrder is returned for an order the board cannot support.
	ErrInvalidOrder = errors.New("gameserver: invalid order")
	// ErrOrderLocked is returned when the origin is under an order lock.
	ErrOrderLocked = errors.New("gameserver: origin is locked")
	// ErrNoRoute is returned when no usable route joins origin and target.
	ErrNoRoute = errors.New("gameserver: no usable route")
	// ErrGameOver is returned for any input after the game has ended.
	ErrGameOver = errors.New("gameserver: game over")
)

// Journal records matches for replay. *postgres.JournalRepository satisfies it.
type Journal interface {
	StartMatch(ctx context.Context, id uuid.UUID, seed uint64, scenario string) error
	RecordTurn(ctx context.Context, id uuid.UUID, turnNo int, in turn.Input, events []event.Event, digest string) error
	FinishMatch(ctx context.Context, id uuid.UUID, winner world.Faction) error
}

// SeedFunc supplies the seed for each new game.
type SeedFunc func() uint64

// MatchOptions configures NewMatch.
type MatchOptions struct {
	// Scenario is the board every new game starts from. It is never mutated.
	Scenario *world.Snapshot
	// ScenarioName is recorded in the journal.
	ScenarioName string
	Factory      Factory
	// Seed returns the seed for each game; nil or a zero seed draws from crypto/rand.
	Seed SeedFunc
	// TurnDuration is the interval between timed resolutions. 0 disables the timer.
	TurnDuration time.Duration
	// Journal may be nil.
	Journal Journal
}

// Match is a single hosted game. All methods are safe for concurrent use.
type Match struct {
	opts   MatchOptions
	logger *zap.Logger
	subs   *broadcaster

	// resolveMu serialises resolutions; an Engine is never run concurrently.
	resolveMu sync.Mutex

	mu      sync.Mutex
	id      uuid.UUID
	gen     uint64
	seed    uint64
	engine  *Engine
	snap    *world.Snapshot
	pending world.Orders
	trigger *turn.Trigger
	timer   *TurnTimer
	running bool
}

// NewMatch creates a Match and starts its first game. The timer does not
// run until Start.
//
// Precondition: opts.Scenario and opts.Factory must not be nil.
// Postcondition: Returns a Match at turn 1, or a non-nil error.
func NewMatch(ctx context.Context, opts MatchOptions, logger *zap.Logger) (*Match, error) {
	if opts.Scenario == nil || opts.Factory == nil {
		return nil, errors.New("gameserver: scenario and factory are required")
	}
	logger = observability.OrNop(logger)
	m := &Match{opts: opts, logger: logger, subs: newBroadcaster()}
	if err := m.NewGame(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// NewGame discards the current game, including any resolution in flight,
// and starts over from the scenario with a fresh seed and engine.
//
// Postcondition: pending orders are cleared; the generation is advanced.
func (m *Match) NewGame(ctx context.Context) error {
	var seed uint64
	if m.opts.Seed != nil {
		seed = m.opts.Seed()
	}
	if seed == 0 {
		seed = dice.NewSeed()
	}
	eng, err := m.opts.Factory(seed)
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	m.mu.Lock()
	old := m.engine
	m.gen++
	m.id = uuid.New()
	m.seed = seed
	m.engine = eng
	m.snap = m.opts.Scenario
	m.pending = make(world.Orders)
	m.trigger = nil
	id, gen, snap := m.id, m.gen, m.snap
	m.mu.Unlock()

	if old != nil {
		// a resolution still running on old holds resolveMu
		go func() {
			m.resolveMu.Lock()
			defer m.resolveMu.Unlock()
			old.Close()
		}()
	}

	if m.opts.Journal != nil {
		if err := m.opts.Journal.StartMatch(ctx, id, seed, m.opts.ScenarioName); err != nil {
			m.logger.Warn("journal start failed", zap.String("match", id.String()), zap.Error(err))
		}
	}
	m.logger.Info("new game",
		zap.String("match", id.String()),
		zap.Uint64("seed", seed),
		zap.Uint64("generation", gen),
	)
	m.subs.publish(Update{MatchID: id.String(), Generation: gen, Snapshot: snap})
	m.rearm()
	return nil
}

// ID returns the current game's match id.
func (m *Match) ID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Seed returns the current game's seed.
func (m *Match) Seed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seed
}

// Snapshot returns the current board. Callers must not mutate it.
func (m *Match) Snapshot() *world.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Orders returns a copy of the pending orders.
func (m *Match) Orders() world.Orders {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending.Clone()
}

// IssueOrder sets the pending order for origin on behalf of faction,
// replacing any previous one. Invalid orders leave the pending set untouched.
//
// Postcondition: returns nil, or one of ErrGameOver, ErrInvalidOrder,
// ErrOrderLocked, ErrNoRoute (possibly wrapped).
func (m *Match) IssueOrder(faction world.Faction, origin, target int, kind world.OrderType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := validateOrder(m.snap, faction, origin, target, kind); err != nil {
		m.logger.Debug("order rejected",
			zap.String("faction", faction.String()),
			zap.Int("origin", origin),
			zap.Int("target", target),
			zap.Error(err),
		)
		return err
	}
	m.pending[origin] = world.Order{Origin: origin, Target: target, Type: kind, Faction: faction}
	return nil
}

// CancelOrder removes faction's pending order for origin. Cancelling a
// missing order is a no-op.
func (m *Match) CancelOrder(faction world.Faction, origin int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ord, ok := m.pending[origin]; ok && ord.Faction == faction {
		delete(m.pending, origin)
	}
}

// Trigger schedules a hazard of profile at cell for the next resolution,
// replacing that turn's ambient roll.
func (m *Match) Trigger(profile string, cell int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap.GameOver {
		return ErrGameOver
	}
	m.trigger = &turn.Trigger{Profile: profile, Cell: cell}
	return nil
}

// Subscribe registers ch to receive an Update after each turn and new game.
// Updates are dropped for a subscriber whose channel is full.
func (m *Match) Subscribe(ch chan<- Update) { m.subs.subscribe(ch) }

// Unsubscribe removes ch.
func (m *Match) Unsubscribe(ch chan<- Update) { m.subs.unsubscribe(ch) }

// Skip resolves the current turn immediately and restarts the timer.
//
// Postcondition: returns ErrGameOver if the game had already ended.
func (m *Match) Skip(ctx context.Context) (turn.Result, error) {
	res, err := m.resolve(ctx)
	if err == nil {
		m.rearm()
	}
	return res, err
}

// Start enables timed resolution every TurnDuration. It does nothing when
// TurnDuration is 0.
func (m *Match) Start() {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()
	m.rearm()
}

// Stop halts timed resolution. A resolution already running completes.
func (m *Match) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	if m.timer != nil {
		m.timer.Stop()
	}
}

// Close stops the timer and releases the current engine.
func (m *Match) Close() {
	m.Stop()
	m.resolveMu.Lock()
	defer m.resolveMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engine != nil {
		m.engine.Close()
		m.engine = nil
	}
}

func (m *Match) rearm() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running || m.opts.TurnDuration <= 0 || m.snap.GameOver {
		return
	}
	if m.timer == nil {
		m.timer = NewTurnTimer(m.opts.TurnDuration, m.onTimer)
		return
	}
	m.timer.Reset(m.opts.TurnDuration, m.onTimer)
}

func (m *Match) onTimer() {
	if _, err := m.resolve(context.Background()); err != nil && !errors.Is(err, ErrGameOver) {
		m.logger.Warn("timed resolution failed", zap.Error(err))
	}
	m.rearm()
}

// resolve runs one turn. The board, orders and engine are captured under
// the lock; if a new game starts while the turn runs, its result is discarded.
func (m *Match) resolve(ctx context.Context) (turn.Result, error) {
	m.resolveMu.Lock()
	defer m.resolveMu.Unlock()

	m.mu.Lock()
	if m.snap.GameOver {
		m.mu.Unlock()
		return turn.Result{Snapshot: m.snap}, ErrGameOver
	}
	gen, id, eng, snap := m.gen, m.id, m.engine, m.snap
	in := turn.Input{Orders: m.pending.Clone(), Trigger: m.trigger}
	m.mu.Unlock()

	if eng == nil {
		return turn.Result{Snapshot: snap}, errors.New("gameserver: match closed")
	}
	start := time.Now()
	res := eng.Orchestrator.Resolve(snap, in)

	m.mu.Lock()
	if m.gen != gen {
		m.mu.Unlock()
		m.logger.Info("discarding resolution from a previous game", zap.Uint64("generation", gen))
		return res, nil
	}
	m.snap = res.Snapshot
	m.consume(in)
	m.mu.Unlock()

	m.logger.Info("turn resolved",
		zap.String("match", id.String()),
		zap.Int("turn", snap.Turn),
		zap.Int("orders", len(res.Resolved)),
		zap.Int("events", len(res.Events)),
		zap.Int("cancelled", len(res.Cancelled)),
		zap.Duration("elapsed", time.Since(start)),
	)
	m.journal(ctx, id, snap.Turn, in, res)
	m.subs.publish(Update{
		MatchID:     id.String(),
		Generation:  gen,
		Snapshot:    res.Snapshot,
		Events:      res.Events,
		SideEffects: res.SideEffects,
	})
	return res, nil
}

// consume drops the orders and trigger that went into in. Anything issued
// or replaced while the turn was resolving stays pending for the next one.
//
// Precondition: m.mu is held.
func (m *Match) consume(in turn.Input) {
	for origin, ord := range in.Orders {
		if cur, ok := m.pending[origin]; ok && cur == ord {
			delete(m.pending, origin)
		}
	}
	if m.trigger == in.Trigger {
		m.trigger = nil
	}
}

func (m *Match) journal(ctx context.Context, id uuid.UUID, turnNo int, in turn.Input, res turn.Result) {
	if m.opts.Journal == nil {
		return
	}
	digest, err := turn.Digest(res.Snapshot)
	if err != nil {
		m.logger.Warn("snapshot digest failed", zap.Int("turn", turnNo), zap.Error(err))
	}
	if err := m.opts.Journal.RecordTurn(ctx, id, turnNo, in, res.Events, digest); err != nil {
		m.logger.Warn("journal turn failed", zap.String("match", id.String()), zap.Int("turn", turnNo), zap.Error(err))
	}
	if res.Snapshot.GameOver {
		if err := m.opts.Journal.FinishMatch(ctx, id, res.Snapshot.Winner); err != nil {
			m.logger.Warn("journal finish failed", zap.String("match", id.String()), zap.Error(err))
		}
		m.logger.Info("game over", zap.String("match", id.String()), zap.String("winner", res.Snapshot.Winner.String()))
	}
}

// validateOrder checks an order against the current board.
func validateOrder(s *world.Snapshot, faction world.Faction, origin, target int, kind world.OrderType) error {
	if s.GameOver {
		return ErrGameOver
	}
	if kind != world.OrderAttack && kind != world.OrderAssist {
		return fmt.Errorf("%w: unknown order type %q", ErrInvalidOrder, kind)
	}
	o, ok := s.Enclave(origin)
	if !ok || !faction.Valid() || faction == world.Neutral || o.Owner != faction {
		return fmt.Errorf("%w: %s does not hold enclave %d", ErrInvalidOrder, faction, origin)
	}
	if _, ok := s.Enclave(target); !ok || target == origin {
		return fmt.Errorf("%w: bad target %d", ErrInvalidOrder, target)
	}
	if o.OrderLock > 0 {
		return fmt.Errorf("%w: enclave %d for %d turns", ErrOrderLocked, origin, o.OrderLock)
	}
	if !world.Reachable(s.Routes, origin, target) {
		return fmt.Errorf("%w: %d to %d", ErrNoRoute, origin, target)
	}
	if o.Forces < 1 {
		return fmt.Errorf("%w: enclave %d has no forces", ErrInvalidOrder, origin)
	}
	return nil
}
