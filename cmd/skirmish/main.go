// Package main runs a skirmish between two factions on a scenario board,
// either headless as fast as turns resolve or on the configured turn timer.
// With -verify it replays a journaled match and checks every turn digest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/config"
	"github.com/cory-johannsen/enclaves/internal/game/hazard"
	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/gameserver"
	"github.com/cory-johannsen/enclaves/internal/observability"
	"github.com/cory-johannsen/enclaves/internal/server"
	"github.com/cory-johannsen/enclaves/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	headless := flag.Bool("headless", false, "resolve turns back to back instead of on the turn timer")
	maxTurns := flag.Int("turns", 200, "headless turn limit")
	bothAI := flag.Bool("ai-vs-ai", false, "let the decision engine play both factions")
	verify := flag.String("verify", "", "match id to replay from the journal and verify")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	contentStart := time.Now()
	scenario, err := world.LoadScenarioFromFile(cfg.Content.Scenario)
	if err != nil {
		logger.Fatal("loading scenario", zap.String("path", cfg.Content.Scenario), zap.Error(err))
	}
	hazards, err := hazard.LoadDirectory(cfg.Content.HazardsDir)
	if err != nil {
		logger.Fatal("loading hazard profiles", zap.String("dir", cfg.Content.HazardsDir), zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("enclaves", len(scenario.Enclaves)),
		zap.Int("routes", len(scenario.Routes)),
		zap.Strings("hazards", hazards.Keys()),
		zap.Duration("elapsed", time.Since(contentStart)),
	)

	aiFaction, err := world.ParseFaction(cfg.Engine.AIFaction)
	if err != nil {
		logger.Fatal("parsing ai faction", zap.Error(err))
	}
	factions := []world.Faction{aiFaction}
	if *bothAI {
		factions = world.Factions
	}
	factory := gameserver.NewFactory(gameserver.EngineOptions{
		Config:     cfg.Engine,
		Hazards:    hazards,
		ScriptsDir: cfg.Content.ScriptsDir,
		AIFactions: factions,
	}, logger.Named("engine"))

	var (
		pool    *postgres.Pool
		journal *postgres.JournalRepository
	)
	if cfg.Journal.Enabled || *verify != "" {
		dbStart := time.Now()
		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		defer pool.Close()
		journal = postgres.NewJournalRepository(pool.DB())
		logger.Info("journal connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}

	if *verify != "" {
		if err := runVerify(ctx, logger, journal, factory, scenario, *verify); err != nil {
			logger.Fatal("verification failed", zap.Error(err))
		}
		return
	}

	opts := gameserver.MatchOptions{
		Scenario:     scenario,
		ScenarioName: strings.TrimSuffix(filepath.Base(cfg.Content.Scenario), filepath.Ext(cfg.Content.Scenario)),
		Factory:      factory,
		TurnDuration: cfg.Engine.TurnDuration,
	}
	if seed := cfg.Engine.Seed; seed != 0 {
		opts.Seed = func() uint64 { return seed }
	}
	if journal != nil {
		opts.Journal = journal
	}
	match, err := gameserver.NewMatch(ctx, opts, logger.Named("match"))
	if err != nil {
		logger.Fatal("creating match", zap.Error(err))
	}
	logger.Info("match ready",
		zap.String("match", match.ID().String()),
		zap.Uint64("seed", match.Seed()),
		zap.Strings("ai", factionNames(factions)),
		zap.Duration("startup", time.Since(start)),
	)

	if *headless {
		defer match.Close()
		runHeadless(ctx, logger, match, *maxTurns)
		return
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("match", matchService(logger, match))
	if pool != nil {
		lifecycle.Add("journal-health", healthService(ctx, logger, pool))
	}
	if err := lifecycle.Run(ctx); err != nil {
		logger.Fatal("skirmish error", zap.Error(err))
	}
}

// runHeadless resolves turns back to back until game over or limit.
func runHeadless(ctx context.Context, logger *zap.Logger, m *gameserver.Match, limit int) {
	for i := 0; i < limit; i++ {
		res, err := m.Skip(ctx)
		if errors.Is(err, gameserver.ErrGameOver) {
			break
		}
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			return
		}
		logTurn(logger, res.Snapshot)
		if res.Snapshot.GameOver {
			break
		}
	}
	report(m.Snapshot())
}

// matchService runs the match on its turn timer until game over or stop.
func matchService(logger *zap.Logger, m *gameserver.Match) server.Service {
	updates := make(chan gameserver.Update, 16)
	stop := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			m.Subscribe(updates)
			defer m.Unsubscribe(updates)
			m.Start()
			for {
				select {
				case <-stop:
					return nil
				case u := <-updates:
					logTurn(logger, u.Snapshot)
					if u.Snapshot.GameOver {
						report(u.Snapshot)
						return nil
					}
				}
			}
		},
		StopFn: func() {
			close(stop)
			m.Close()
		},
	}
}

func healthService(ctx context.Context, logger *zap.Logger, pool *postgres.Pool) server.Service {
	stop := make(chan struct{})
	return &server.FuncService{
		StartFn: func() error {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return nil
				case <-ticker.C:
					if err := pool.Health(ctx, 5*time.Second); err != nil {
						logger.Warn("journal health check failed", zap.Error(err))
					}
				}
			}
		},
		StopFn: func() { close(stop) },
	}
}

func runVerify(ctx context.Context, logger *zap.Logger, journal *postgres.JournalRepository, factory gameserver.Factory, scenario *world.Snapshot, raw string) error {
	id, err := uuid.Parse(raw)
	if err != nil {
		return fmt.Errorf("parsing match id: %w", err)
	}
	rec, err := journal.LoadMatch(ctx, id)
	if err != nil {
		return err
	}
	turns, err := journal.ListTurns(ctx, id)
	if err != nil {
		return err
	}
	log := make([]turn.Input, len(turns))
	digests := make([]string, len(turns))
	for i, tr := range turns {
		log[i] = tr.Input
		digests[i] = tr.Digest
	}
	bad, err := gameserver.Verify(factory, rec.Seed, scenario, log, digests)
	if err != nil {
		return err
	}
	if bad != 0 {
		return fmt.Errorf("match %s diverges at turn %d", id, bad)
	}
	logger.Info("match verified",
		zap.String("match", id.String()),
		zap.Int("turns", len(turns)),
		zap.String("winner", rec.Winner.String()),
	)
	return nil
}

func logTurn(logger *zap.Logger, s *world.Snapshot) {
	logger.Info("board",
		zap.Int("turn", s.Turn),
		zap.Int("enclaves_a", s.Count(world.FactionA)),
		zap.Int("enclaves_b", s.Count(world.FactionB)),
		zap.Int("forces", s.TotalForces()),
		zap.Int("hazards", len(s.Markers)),
	)
}

func report(s *world.Snapshot) {
	switch {
	case !s.GameOver:
		fmt.Fprintf(os.Stdout, "turn %d: no winner yet (A holds %d, B holds %d)\n", s.Turn, s.Count(world.FactionA), s.Count(world.FactionB))
	case s.Winner == world.Neutral:
		fmt.Fprintf(os.Stdout, "turn %d: both factions eliminated\n", s.Turn)
	default:
		fmt.Fprintf(os.Stdout, "turn %d: faction %s wins\n", s.Turn, s.Winner)
	}
}

func factionNames(fs []world.Faction) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}
