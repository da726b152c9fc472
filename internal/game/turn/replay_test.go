package turn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/enclaves/internal/config"
	"github.com/cory-johannsen/enclaves/internal/game/ai"
	"github.com/cory-johannsen/enclaves/internal/game/combat"
	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/hazard"
	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// skirmish builds an AI-versus-AI orchestrator over the shipped content.
func skirmish(t *testing.T, seed uint64) (*turn.Orchestrator, *world.Snapshot) {
	cfg := config.DefaultEngine()
	cfg.HazardChance = 0.3
	snap, err := world.LoadScenarioFromFile("../../../content/scenarios/twin_rivers.yaml")
	require.NoError(t, err)
	reg, err := hazard.LoadDirectory("../../../content/hazards")
	require.NoError(t, err)

	logger := zap.NewNop()
	src := dice.NewSeededSource(seed)
	res := combat.NewResolver(cfg, nil, logger)
	planners := ai.NewRegistry()
	for _, f := range world.Factions {
		require.NoError(t, planners.Register(ai.NewPlanner(f, cfg, res, logger)))
	}
	hz := hazard.NewEngine(reg, src, nil, hazard.Config{HazardChance: cfg.HazardChance, SupplyCap: cfg.SupplyCap}, logger)
	return turn.New(res, hz, planners, cfg.SupplyCap, logger), snap
}

func TestDigest_StableAndSensitive(t *testing.T) {
	snap := snapshot(enclave(1, world.FactionA, 10), enclave(2, world.FactionB, 10))
	a, err := turn.Digest(snap)
	require.NoError(t, err)
	b, err := turn.Digest(snap)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := snapshot(enclave(1, world.FactionA, 11), enclave(2, world.FactionB, 10))
	c, err := turn.Digest(changed)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestReplay_ReproducesSeededMatch(t *testing.T) {
	const turns = 40
	o, initial := skirmish(t, 1234)

	var log []turn.Input
	var digests []string
	snap := initial
	for i := 0; i < turns && !snap.GameOver; i++ {
		in := turn.Input{}
		if i == 3 {
			in.Trigger = &turn.Trigger{Profile: "entropy_wind", Cell: 6}
		}
		res := o.Resolve(snap, in)
		log = append(log, in)
		d, err := turn.Digest(res.Snapshot)
		require.NoError(t, err)
		digests = append(digests, d)
		snap = res.Snapshot
	}

	fresh, again := skirmish(t, 1234)
	replayed := turn.Replay(fresh, again, log)
	require.Len(t, replayed, len(digests))
	for i, res := range replayed {
		d, err := turn.Digest(res.Snapshot)
		require.NoError(t, err)
		assert.Equal(t, digests[i], d, "turn %d diverged", i+1)
	}
}

func TestSkirmish_InvariantsHoldEveryTurn(t *testing.T) {
	o, snap := skirmish(t, 99)
	for i := 0; i < 60 && !snap.GameOver; i++ {
		res := o.Resolve(snap, turn.Input{})
		for id, e := range res.Snapshot.Enclaves {
			require.GreaterOrEqual(t, e.Forces, 0, "enclave %d", id)
			require.LessOrEqual(t, e.Forces, 100, "enclave %d", id)
			require.False(t, e.Owned() && e.Forces == 0, "enclave %d owned at zero", id)
		}
		require.Equal(t, snap.Turn+1, res.Snapshot.Turn)
		require.Len(t, res.Snapshot.Enclaves, len(snap.Enclaves))
		snap = res.Snapshot
	}
}

func TestReplay_StopsAtGameOver(t *testing.T) {
	o := newOrchestrator(t, quietConfig(), fixedSrc{0}, registry(t), nil)
	snap := snapshot(enclave(1, world.FactionA, 20), enclave(2, world.FactionB, 8))
	attack := turn.Input{Orders: world.Orders{1: {Origin: 1, Target: 2, Type: world.OrderAttack, Faction: world.FactionA}}}

	results := turn.Replay(o, snap, []turn.Input{attack, {}, {}})

	require.Len(t, results, 1)
	assert.True(t, results[0].Snapshot.GameOver)
}
