package postgres_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/enclaves/internal/config"
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/hazard"
	"github.com/cory-johannsen/enclaves/internal/game/turn"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/gameserver"
	"github.com/cory-johannsen/enclaves/internal/storage/postgres"
	"github.com/cory-johannsen/enclaves/internal/testutil"
)

func TestJournal_RoundTrip(t *testing.T) {
	repo := testutil.NewJournal(t)
	ctx := context.Background()
	id := uuid.New()

	// Seeds above MaxInt64 survive the signed column.
	seed := uint64(1<<63 + 12345)
	require.NoError(t, repo.StartMatch(ctx, id, seed, "twin_rivers"))

	in := turn.Input{
		Orders: world.Orders{
			1: {Origin: 1, Target: 2, Type: world.OrderAttack, Faction: world.FactionA},
		},
		Trigger: &turn.Trigger{Profile: "storm", Cell: 6},
	}
	events := []event.Event{
		{Kind: event.KindAttack, Turn: 1, Origin: 1, Target: 2, Faction: world.FactionA, Forces: 10},
	}
	require.NoError(t, repo.RecordTurn(ctx, id, 1, in, events, "ab12"))
	require.NoError(t, repo.RecordTurn(ctx, id, 2, turn.Input{}, nil, "cd34"))

	rec, err := repo.LoadMatch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, seed, rec.Seed)
	assert.Equal(t, "twin_rivers", rec.Scenario)
	assert.False(t, rec.Finished())

	turns, err := repo.ListTurns(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, 1, turns[0].Turn)
	assert.Equal(t, in.Orders, turns[0].Input.Orders)
	require.NotNil(t, turns[0].Input.Trigger)
	assert.Equal(t, 6, turns[0].Input.Trigger.Cell)
	assert.Equal(t, events, turns[0].Events)
	assert.Equal(t, "cd34", turns[1].Digest)
	assert.Empty(t, turns[1].Events)

	require.NoError(t, repo.FinishMatch(ctx, id, world.FactionB))
	rec, err = repo.LoadMatch(ctx, id)
	require.NoError(t, err)
	assert.True(t, rec.Finished())
	assert.Equal(t, world.FactionB, rec.Winner)
}

func TestJournal_Errors(t *testing.T) {
	repo := testutil.NewJournal(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := repo.LoadMatch(ctx, missing)
	assert.ErrorIs(t, err, postgres.ErrMatchNotFound)
	_, err = repo.ListTurns(ctx, missing)
	assert.ErrorIs(t, err, postgres.ErrMatchNotFound)
	assert.ErrorIs(t, repo.FinishMatch(ctx, missing, world.FactionA), postgres.ErrMatchNotFound)
	assert.ErrorIs(t, repo.RecordTurn(ctx, missing, 1, turn.Input{}, nil, "x"), postgres.ErrMatchNotFound)

	id := uuid.New()
	require.NoError(t, repo.StartMatch(ctx, id, 1, ""))
	require.NoError(t, repo.RecordTurn(ctx, id, 1, turn.Input{}, nil, "x"))
	assert.ErrorIs(t, repo.RecordTurn(ctx, id, 1, turn.Input{}, nil, "x"), postgres.ErrTurnRecorded)
}

func TestJournal_DrawRecordsNoWinner(t *testing.T) {
	repo := testutil.NewJournal(t)
	ctx := context.Background()
	id := uuid.New()
	require.NoError(t, repo.StartMatch(ctx, id, 7, "draw"))
	require.NoError(t, repo.FinishMatch(ctx, id, world.Neutral))

	matches, err := repo.ListMatches(ctx, 10)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, id, matches[0].ID)
	assert.Equal(t, world.Neutral, matches[0].Winner)
	assert.True(t, matches[0].Finished())
}

// A match hosted against the real journal can be verified turn by turn.
func TestJournal_HostedMatchVerifies(t *testing.T) {
	repo := testutil.NewJournal(t)
	ctx := context.Background()

	snap, err := world.LoadScenarioFromFile("../../../content/scenarios/twin_rivers.yaml")
	require.NoError(t, err)
	reg, err := hazard.LoadDirectory("../../../content/hazards")
	require.NoError(t, err)
	cfg := config.DefaultEngine()
	cfg.HazardChance = 0.3
	factory := gameserver.NewFactory(gameserver.EngineOptions{
		Config:     cfg,
		Hazards:    reg,
		ScriptsDir: "../../../content/scripts/hazards",
		AIFactions: []world.Faction{world.FactionA, world.FactionB},
	}, zaptest.NewLogger(t))

	m, err := gameserver.NewMatch(ctx, gameserver.MatchOptions{
		Scenario:     snap,
		ScenarioName: "twin_rivers",
		Factory:      factory,
		Seed:         func() uint64 { return 99 },
		Journal:      repo,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 8; i++ {
		if _, err := m.Skip(ctx); err != nil {
			require.ErrorIs(t, err, gameserver.ErrGameOver)
			break
		}
	}

	rec, err := repo.LoadMatch(ctx, m.ID())
	require.NoError(t, err)
	turns, err := repo.ListTurns(ctx, m.ID())
	require.NoError(t, err)
	require.NotEmpty(t, turns)

	log := make([]turn.Input, len(turns))
	digests := make([]string, len(turns))
	for i, tr := range turns {
		log[i] = tr.Input
		digests[i] = tr.Digest
	}
	bad, err := gameserver.Verify(factory, rec.Seed, snap, log, digests)
	require.NoError(t, err)
	assert.Equal(t, 0, bad)
}
