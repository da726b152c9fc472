package gameserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/config"
	"github.com/cory-johannsen/enclaves/internal/game/ai"
	"github.com/cory-johannsen/enclaves/internal/game/combat"
	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/hazard"
	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/observability"
	"github.com/cory-johannsen/enclaves/internal/scripting"
)

// Engine is one match's orchestrator together with the resources it owns.
type Engine struct {
	Orchestrator *turn.Orchestrator
	// Close releases the engine's script VMs. Safe to call once.
	Close func()
}

// Factory builds a fresh Engine whose every random draw comes from seed.
type Factory func(seed uint64) (*Engine, error)

// EngineOptions configures NewFactory.
type EngineOptions struct {
	Config  config.EngineConfig
	Hazards *hazard.Registry
	// ScriptsDir holds Lua hook scripts. Empty disables scripting.
	ScriptsDir string
	// AIFactions lists the factions the decision engine controls.
	AIFactions []world.Faction
	// Birthrights maps archetypes to bonus strategies. Nil means none.
	Birthrights *combat.Birthrights
}

// NewFactory returns a Factory wiring the resolvers, hazard engine, script
// hooks and AI planners for each new match.
//
// Precondition: opts.Hazards must not be nil; opts.Config.Validate() == nil.
func NewFactory(opts EngineOptions, logger *zap.Logger) Factory {
	logger = observability.OrNop(logger)
	return func(seed uint64) (*Engine, error) {
		src := dice.NewSeededSource(seed)
		cfg := opts.Config

		var hooks hazard.Hooks
		closeFn := func() {}
		if opts.ScriptsDir != "" {
			mgr := scripting.NewManager(dice.NewLoggedRoller(src, logger), logger, 0)
			keys, err := mgr.LoadDirectory(opts.ScriptsDir)
			if err != nil {
				mgr.Close()
				return nil, fmt.Errorf("loading hazard scripts: %w", err)
			}
			logger.Debug("hazard scripts loaded", zap.Strings("scripts", keys))
			hooks = mgr
			closeFn = mgr.Close
		}

		resolver := combat.NewResolver(cfg, opts.Birthrights, logger)
		planners := ai.NewRegistry()
		for _, f := range opts.AIFactions {
			if err := planners.Register(ai.NewPlanner(f, cfg, resolver, logger)); err != nil {
				closeFn()
				return nil, err
			}
		}
		hz := hazard.NewEngine(opts.Hazards, src, hooks, hazard.Config{
			HazardChance: cfg.HazardChance,
			SupplyCap:    cfg.SupplyCap,
		}, logger)

		return &Engine{
			Orchestrator: turn.New(resolver, hz, planners, cfg.SupplyCap, logger),
			Close:        closeFn,
		}, nil
	}
}
