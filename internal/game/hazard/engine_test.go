package hazard_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/event"
	"github.com/cory-johannsen/enclaves/internal/game/hazard"
	"github.com/cory-johannsen/enclaves/internal/game/world"
	"github.com/cory-johannsen/enclaves/internal/scripting"
)

// fixedSrc returns val for every Intn call.
type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

const chainYAML = `
key: tremor
phases:
  - phase: alert
    duration: 2
    radius: 0
  - phase: impact
    duration: 1
    radius: 0
    sfx: sfx/tremor
    instant:
      - kind: forceDamage
        amount: 5
  - phase: aftermath
    duration: 3
    radius: 0
    continuous:
      - kind: statModifier
        stat: production
        reduction: 0.5
`

const windYAML = `
key: wind
mobile: true
phases:
  - phase: impact
    duration: 1
    radius: 0
    instant:
      - kind: forceDamage
        amount: 4
  - phase: aftermath
    duration: 2
    radius: 0
    vfx: vfx/wind
`

// line builds cells 1..n in a chain with one enclave per cell.
func line(n, forces int) (*world.Map, map[int]*world.Enclave) {
	m := &world.Map{Cells: make(map[int]*world.Cell)}
	es := make(map[int]*world.Enclave)
	for i := 1; i <= n; i++ {
		c := &world.Cell{ID: i, X: i, Land: true}
		if i > 1 {
			c.Neighbors = append(c.Neighbors, i-1)
		}
		if i < n {
			c.Neighbors = append(c.Neighbors, i+1)
		}
		m.Cells[i] = c
		es[i] = &world.Enclave{ID: i, Owner: world.FactionA, Forces: forces, CellID: i, Territory: []int{i}}
	}
	return m, es
}

func registry(t *testing.T, docs ...string) *hazard.Registry {
	reg := hazard.NewRegistry()
	for _, d := range docs {
		p, err := hazard.ParseProfile([]byte(d))
		require.NoError(t, err)
		reg.Register(p)
	}
	return reg
}

func newEngine(t *testing.T, reg *hazard.Registry, src dice.Source, hooks hazard.Hooks, chance float64) *hazard.Engine {
	return hazard.NewEngine(reg, src, hooks, hazard.Config{HazardChance: chance, SupplyCap: 100}, zaptest.NewLogger(t))
}

// run advances st through turns [from, to] and returns the final state.
func run(eng *hazard.Engine, st hazard.State, from, to int, each func(turn int, st hazard.State, q *event.Queue)) hazard.State {
	for turn := from; turn <= to; turn++ {
		st.Turn = turn
		q := event.NewQueue(turn, st.Map)
		res := eng.Advance(st, q)
		st.Enclaves, st.Routes, st.Markers = res.Enclaves, res.Routes, res.Markers
		if each != nil {
			each(turn, st, q)
		}
	}
	return st
}

func effectsOf(e *world.Enclave, phase world.Phase) []world.ActiveEffect {
	var out []world.ActiveEffect
	for _, eff := range e.Effects {
		if eff.Phase == phase {
			out = append(out, eff)
		}
	}
	return out
}

func TestAdvance_PhaseChainTiming(t *testing.T) {
	eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 0)
	m, es := line(1, 50)
	marker, err := eng.Spawn("tremor", 1)
	require.NoError(t, err)

	st := hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}
	forces := map[int]int{}
	aftermath := map[int]int{}
	hazardEvents := map[int]int{}
	run(eng, st, 2, 8, func(turn int, st hazard.State, q *event.Queue) {
		e := st.Enclaves[1]
		forces[turn] = e.Forces
		if a := effectsOf(e, world.PhaseAftermath); len(a) == 1 {
			aftermath[turn] = a[0].Remaining
		}
		hazardEvents[turn] = q.Count(event.KindHazard)
	})

	assert.Equal(t, 50, forces[2])
	assert.Equal(t, 50, forces[3])
	assert.Equal(t, 45, forces[4], "impact instant applies on turn 4")
	assert.Equal(t, 45, forces[8], "impact instant applies exactly once")

	assert.Equal(t, 3, aftermath[4], "aftermath attached at turn 4 with full duration")
	assert.Equal(t, 2, aftermath[5])
	assert.Equal(t, 1, aftermath[6])
	_, live := aftermath[7]
	assert.False(t, live, "aftermath expired by turn 7")

	assert.Equal(t, 1, hazardEvents[2], "alert entry")
	assert.Equal(t, 0, hazardEvents[3])
	assert.Equal(t, 2, hazardEvents[4], "impact entry and aftermath spawn")
}

func TestAdvance_InputNotMutated(t *testing.T) {
	eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 0)
	m, es := line(1, 50)
	marker, _ := eng.Spawn("tremor", 1)
	st := hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}

	run(eng, st, 2, 5, nil)

	assert.Equal(t, 50, es[1].Forces)
	assert.Empty(t, es[1].Effects)
	assert.False(t, st.Markers[0].Entered)
}

func TestAdvance_NoHazardsReturnsBaseMap(t *testing.T) {
	eng := newEngine(t, registry(t), fixedSrc{0}, nil, 0)
	m, es := line(2, 10)
	res := eng.Advance(hazard.State{Turn: 2, Map: m, Enclaves: es}, event.NewQueue(2, m))
	assert.Equal(t, es, res.Enclaves)
	assert.Empty(t, res.Markers)
}

func TestAdvance_UnknownProfileDropped(t *testing.T) {
	eng := newEngine(t, registry(t), fixedSrc{0}, nil, 0)
	m, es := line(1, 10)
	es[1].Effects = []world.ActiveEffect{{ProfileKey: "ghost", Phase: world.PhaseAftermath, Remaining: 3}}
	st := hazard.State{
		Turn:     2,
		Map:      m,
		Enclaves: es,
		Markers:  []world.Marker{{ProfileKey: "ghost", Cell: 1}},
	}

	res := eng.Advance(st, event.NewQueue(2, m))

	assert.Empty(t, res.Markers)
	assert.Empty(t, res.Enclaves[1].Effects)
	assert.Equal(t, 10, res.Enclaves[1].Forces)
}

func TestSpawn_UnknownProfile(t *testing.T) {
	eng := newEngine(t, registry(t), fixedSrc{0}, nil, 0)
	_, err := eng.Spawn("ghost", 1)
	assert.ErrorIs(t, err, hazard.ErrUnknownProfile)
}

func TestAdvance_RadiusTargetsTerritory(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: quake
phases:
  - phase: impact
    duration: 1
    radius: 1
    instant:
      - kind: forceDamage
        amount: 3
`), fixedSrc{0}, nil, 0)
	m, es := line(4, 10)
	marker, _ := eng.Spawn("quake", 2)

	res := eng.Advance(hazard.State{Turn: 2, Map: m, Enclaves: es, Markers: []world.Marker{marker}}, event.NewQueue(2, m))

	assert.Equal(t, 7, res.Enclaves[1].Forces)
	assert.Equal(t, 7, res.Enclaves[2].Forces)
	assert.Equal(t, 7, res.Enclaves[3].Forces)
	assert.Equal(t, 10, res.Enclaves[4].Forces, "two hops away")
	assert.Empty(t, res.Markers, "final phase retires the marker")
}

func TestAdvance_AftermathGatedByChance(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: flood
phases:
  - phase: impact
    duration: 1
    radius: 0
  - phase: aftermath
    duration: 2
    radius: 1
    instant:
      - kind: applyAftermathOnChance
        chance: 0
`), fixedSrc{0}, nil, 0)
	m, es := line(3, 10)
	marker, _ := eng.Spawn("flood", 2)

	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 2, nil)

	for _, id := range []int{1, 2, 3} {
		assert.Empty(t, effectsOf(st.Enclaves[id], world.PhaseAftermath), "enclave %d", id)
	}
}

func TestAdvance_MobileAftermathGatedByChance(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: gust
mobile: true
phases:
  - phase: impact
    duration: 1
    radius: 0
    instant:
      - kind: forceDamage
        amount: 4
  - phase: aftermath
    duration: 2
    radius: 0
    instant:
      - kind: applyAftermathOnChance
        chance: 0
`), fixedSrc{0}, nil, 0)
	m, es := line(3, 20)
	marker, _ := eng.Spawn("gust", 1)

	var hazards int
	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 4, func(_ int, _ hazard.State, q *event.Queue) {
		for _, ev := range q.Events() {
			if ev.Kind == event.KindHazard && ev.Phase == world.PhaseAftermath {
				hazards++
			}
		}
	})

	assert.Equal(t, 16, st.Enclaves[1].Forces, "only the impact lands")
	assert.Equal(t, 20, st.Enclaves[2].Forces)
	assert.Zero(t, hazards)
	for id, e := range st.Enclaves {
		assert.Empty(t, e.Effects, "enclave %d", id)
	}
}

func TestAdvance_AftermathSpreadsFromOrigin(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: flood
phases:
  - phase: impact
    duration: 1
    radius: 0
  - phase: aftermath
    duration: 2
    radius: 1
`), fixedSrc{0}, nil, 0)
	m, es := line(4, 10)
	marker, _ := eng.Spawn("flood", 2)

	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 2, nil)

	for _, id := range []int{1, 2, 3} {
		a := effectsOf(st.Enclaves[id], world.PhaseAftermath)
		require.Len(t, a, 1, "enclave %d", id)
		assert.Equal(t, marker.InstanceID, a[0].InstanceID)
		assert.Equal(t, 2, a[0].OriginCell)
	}
	assert.Empty(t, st.Enclaves[4].Effects)
}

func TestAdvance_MobileHazardDrifts(t *testing.T) {
	eng := newEngine(t, registry(t, windYAML), fixedSrc{0}, nil, 0)
	m, es := line(3, 20)
	marker, _ := eng.Spawn("wind", 1)
	st := hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}

	// t2: impact at cell 1, wind forms on enclave 1.
	st = run(eng, st, 2, 2, nil)
	assert.Equal(t, 16, st.Enclaves[1].Forces)
	wind := effectsOf(st.Enclaves[1], world.PhaseAftermath)
	require.Len(t, wind, 1)
	assert.True(t, wind[0].Mobile)
	assert.Equal(t, 2, wind[0].MovesLeft)

	// t3: hits cell 1 again, moves to its only neighbour.
	st = run(eng, st, 3, 3, nil)
	assert.Equal(t, 12, st.Enclaves[1].Forces)
	assert.Empty(t, st.Enclaves[1].Effects)
	wind = effectsOf(st.Enclaves[2], world.PhaseAftermath)
	require.Len(t, wind, 1)
	assert.Equal(t, 2, wind[0].Cell)
	assert.Equal(t, 1, wind[0].MovesLeft)

	// t4: hits cell 2 and spends its last move.
	st = run(eng, st, 4, 4, nil)
	assert.Equal(t, 16, st.Enclaves[2].Forces)
	assert.Equal(t, 20, st.Enclaves[3].Forces)
	for id, e := range st.Enclaves {
		assert.Empty(t, e.Effects, "enclave %d", id)
	}
}

func TestAdvance_MobileHazardStrandedTicksInPlace(t *testing.T) {
	eng := newEngine(t, registry(t, windYAML), fixedSrc{0}, nil, 0)
	m, es := line(1, 20)
	marker, _ := eng.Spawn("wind", 1)

	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 3, nil)

	// impact (4) + one hit (4) + one stranded tick (4)
	assert.Equal(t, 8, st.Enclaves[1].Forces)
	wind := effectsOf(st.Enclaves[1], world.PhaseAftermath)
	require.Len(t, wind, 1)
	assert.Equal(t, 1, wind[0].MovesLeft)
	assert.Equal(t, 1, wind[0].Cell)
}

func TestAdvance_MobileHazardDissipates(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: wind
mobile: true
phases:
  - phase: impact
    duration: 1
    radius: 0
    instant:
      - kind: forceDamage
        amount: 4
  - phase: aftermath
    duration: 5
    radius: 0
    instant:
      - kind: dissipateOnNoTarget
`), fixedSrc{0}, nil, 0)
	m, es := line(1, 20)
	marker, _ := eng.Spawn("wind", 1)

	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 3, nil)

	assert.Equal(t, 12, st.Enclaves[1].Forces)
	assert.Empty(t, st.Enclaves[1].Effects)
}

type stubHooks struct {
	delta int
	calls []scripting.EffectInfo
}

func (s *stubHooks) Continuous(_ string, info scripting.EffectInfo) (int, bool) {
	s.calls = append(s.calls, info)
	return s.delta, true
}

func TestAdvance_HookOverridesContinuous(t *testing.T) {
	hooks := &stubHooks{delta: -3}
	eng := newEngine(t, registry(t, `
key: blight
hook: blight
phases:
  - phase: aftermath
    duration: 3
    radius: 0
    continuous:
      - kind: forceDamage
        amount: 50
`), fixedSrc{0}, hooks, 0)
	m, es := line(1, 20)
	marker, _ := eng.Spawn("blight", 1)

	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 3, nil)

	require.Len(t, hooks.calls, 1)
	assert.Equal(t, 1, hooks.calls[0].Enclave)
	assert.Equal(t, "aftermath", hooks.calls[0].Phase)
	assert.Equal(t, 17, st.Enclaves[1].Forces)
}

func TestAdvance_ContinuousDamageOverTime(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: rot
phases:
  - phase: aftermath
    duration: 3
    radius: 0
    continuous:
      - kind: forceDamage
        amount: 2
`), fixedSrc{0}, nil, 0)
	m, es := line(1, 20)
	marker, _ := eng.Spawn("rot", 1)

	st := run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 6, nil)

	// attached t2, ticks at t3 and t4, expires in t4's effect pass
	assert.Equal(t, 16, st.Enclaves[1].Forces)
	assert.Empty(t, st.Enclaves[1].Effects)
}

func TestAdvance_SummonAddsPendingMarker(t *testing.T) {
	eng := newEngine(t, registry(t, chainYAML, `
key: omen
phases:
  - phase: impact
    duration: 1
    radius: 0
    instant:
      - kind: summonDisaster
        profile: tremor
`), fixedSrc{0}, nil, 0)
	m, es := line(1, 20)
	marker, _ := eng.Spawn("omen", 1)

	res := eng.Advance(hazard.State{Turn: 2, Map: m, Enclaves: es, Markers: []world.Marker{marker}}, event.NewQueue(2, m))

	require.Len(t, res.Markers, 1)
	assert.Equal(t, "tremor", res.Markers[0].ProfileKey)
	assert.False(t, res.Markers[0].Entered)
}

func TestAdvance_CancelOrdersReported(t *testing.T) {
	eng := newEngine(t, registry(t, `
key: panic
phases:
  - phase: impact
    duration: 1
    radius: 1
    instant:
      - kind: lockOrders
        turns: 2
`), fixedSrc{0}, nil, 0)
	m, es := line(3, 20)
	marker, _ := eng.Spawn("panic", 1)

	res := eng.Advance(hazard.State{Turn: 2, Map: m, Enclaves: es, Markers: []world.Marker{marker}}, event.NewQueue(2, m))

	assert.Equal(t, []int{1, 2}, res.Cancelled)
	assert.Equal(t, 2, res.Enclaves[1].OrderLock)
	assert.Equal(t, 0, res.Enclaves[3].OrderLock)
}

func TestAdvance_SideEffectsAtMarkerCell(t *testing.T) {
	eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 0)
	m, es := line(1, 50)
	marker, _ := eng.Spawn("tremor", 1)

	var sfx []string
	run(eng, hazard.State{Map: m, Enclaves: es, Markers: []world.Marker{marker}}, 2, 4, func(_ int, _ hazard.State, q *event.Queue) {
		for _, s := range q.SideEffects() {
			sfx = append(sfx, s.SFX)
		}
	})
	assert.Equal(t, []string{"sfx/tremor"}, sfx)
}

func TestAmbient(t *testing.T) {
	m, es := line(3, 10)
	m.Cells[4] = &world.Cell{ID: 4, Land: false}

	t.Run("certain spawn picks a land cell", func(t *testing.T) {
		eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 1)
		q := event.NewQueue(1, m)
		markers := eng.Ambient(hazard.State{Turn: 1, Map: m, Enclaves: es, Hazards: []string{"tremor"}}, q)
		require.Len(t, markers, 1)
		assert.Equal(t, "tremor", markers[0].ProfileKey)
		assert.Equal(t, 1, markers[0].Cell)
		assert.Equal(t, 1, q.Count(event.KindHazard))
	})
	t.Run("empty cell spawns without a hazard event", func(t *testing.T) {
		eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 1)
		empty, others := line(2, 10)
		delete(others, 1)
		q := event.NewQueue(1, empty)
		markers := eng.Ambient(hazard.State{Turn: 1, Map: empty, Enclaves: others, Hazards: []string{"tremor"}}, q)
		require.Len(t, markers, 1)
		assert.Equal(t, 1, markers[0].Cell)
		assert.Zero(t, q.Count(event.KindHazard))
	})
	t.Run("zero chance never spawns", func(t *testing.T) {
		eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 0)
		assert.Empty(t, eng.Ambient(hazard.State{Turn: 1, Map: m, Enclaves: es, Hazards: []string{"tremor"}}, event.NewQueue(1, m)))
	})
	t.Run("no allowed profiles", func(t *testing.T) {
		eng := newEngine(t, registry(t, chainYAML), fixedSrc{0}, nil, 1)
		assert.Empty(t, eng.Ambient(hazard.State{Turn: 1, Map: m, Enclaves: es, Hazards: []string{"ghost"}}, event.NewQueue(1, m)))
	})
}

func TestSpawn_InstanceIDsReproducible(t *testing.T) {
	a := newEngine(t, registry(t, chainYAML), dice.NewSeededSource(7), nil, 0)
	b := newEngine(t, registry(t, chainYAML), dice.NewSeededSource(7), nil, 0)
	ma, _ := a.Spawn("tremor", 1)
	mb, _ := b.Spawn("tremor", 1)
	assert.Equal(t, ma.InstanceID, mb.InstanceID)
	mc, _ := a.Spawn("tremor", 1)
	assert.NotEqual(t, ma.InstanceID, mc.InstanceID)
}

func TestPropertyForcesStayInBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64Min(1).Draw(rt, "seed")
		n := rapid.IntRange(1, 6).Draw(rt, "cells")
		forces := rapid.IntRange(0, 100).Draw(rt, "forces")

		eng := hazard.NewEngine(registry(t, chainYAML, windYAML, `
key: storm
phases:
  - phase: impact
    duration: [1, 3]
    radius: 1
    instant:
      - kind: forceDamage
        percent: [10, 60]
  - phase: aftermath
    duration: [1, 2]
    radius: global
    continuous:
      - kind: forceDamage
        amount: [0, 5]
`), dice.NewSeededSource(seed), nil, hazard.Config{HazardChance: 0.5, SupplyCap: 100}, nil)
		m, es := line(n, forces)
		st := hazard.State{Map: m, Enclaves: es, Hazards: []string{"tremor", "wind", "storm"}}
		for turn := 1; turn <= 12; turn++ {
			st.Turn = turn
			q := event.NewQueue(turn, m)
			res := eng.Advance(st, q)
			st.Enclaves, st.Routes, st.Markers = res.Enclaves, res.Routes, res.Markers
			st.Markers = append(st.Markers, eng.Ambient(st, q)...)
			for id, e := range st.Enclaves {
				if e.Forces < 0 || e.Forces > 100 {
					rt.Fatalf("turn %d enclave %d forces %d out of bounds", turn, id, e.Forces)
				}
			}
		}
		for id, e := range es {
			if e.Forces != forces || len(e.Effects) != 0 {
				rt.Fatalf("initial enclave %d was mutated", id)
			}
		}
	})
}
