package rules_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/rules"
)

type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

func decode(t *testing.T, src string) []rules.Rule {
	t.Helper()
	var rs []rules.Rule
	require.NoError(t, yaml.Unmarshal([]byte(src), &rs))
	return rs
}

func TestDecode_ScalarAndRangeQuantities(t *testing.T) {
	rs := decode(t, `
- kind: forceDamage
  amount: 3
- kind: forceDamage
  percent: [10, 30]
`)
	require.Len(t, rs, 2)
	assert.Equal(t, rules.Fixed(3), *rs[0].Amount)
	assert.Nil(t, rs[0].Percent)
	assert.Equal(t, rules.Between(10, 30), *rs[1].Percent)
	assert.True(t, rs[1].Percent.IsRange())
}

func TestDecode_BadRangeRejected(t *testing.T) {
	var rs []rules.Rule
	err := yaml.Unmarshal([]byte(`- kind: forceDamage
  amount: [1, 2, 3]
`), &rs)
	assert.Error(t, err)
}

func TestDecode_UnknownKindKept(t *testing.T) {
	rs := decode(t, `- kind: summonKraken`)
	require.Len(t, rs, 1)
	assert.False(t, rs[0].Kind.Known())
	assert.True(t, rules.KindForceDamage.Known())
}

func TestProbability_DefaultsToOne(t *testing.T) {
	rs := decode(t, `
- kind: disableRoutes
  turns: 2
- kind: destroyRoutes
  chance: 0.25
`)
	assert.Equal(t, 1.0, rs[0].Probability())
	assert.Equal(t, 0.25, rs[1].Probability())
}

func TestQuantity_ResolveFixedConsumesNothing(t *testing.T) {
	q := rules.Fixed(4)
	assert.Equal(t, 4, q.Resolve(fixedSrc{99}))
}

func TestQuantity_ResolveOrNil(t *testing.T) {
	var q *rules.Quantity
	assert.Equal(t, 7, q.ResolveOr(fixedSrc{0}, 7))
}

func TestCompile_GuardEvaluates(t *testing.T) {
	rs := decode(t, `
- kind: grantForcesToCapital
  amount: 2
  when: Capital && Forces < 10
`)
	require.NoError(t, rules.Compile(rs))
	assert.True(t, rs[0].Allows(rules.Env{Forces: 4, Capital: true}))
	assert.False(t, rs[0].Allows(rules.Env{Forces: 12, Capital: true}))
	assert.False(t, rs[0].Allows(rules.Env{Forces: 4}))
}

func TestCompile_InvalidGuardRejected(t *testing.T) {
	rs := []rules.Rule{{Kind: rules.KindConvert, When: "Forces +"}}
	assert.Error(t, rules.Compile(rs))
}

func TestCompile_NonBoolGuardRejected(t *testing.T) {
	rs := []rules.Rule{{Kind: rules.KindConvert, When: "Forces + 1"}}
	assert.Error(t, rules.Compile(rs))
}

func TestAllows_NoGuard(t *testing.T) {
	assert.True(t, rules.Rule{Kind: rules.KindSetForces}.Allows(rules.Env{}))
}

func TestFindAndHas(t *testing.T) {
	rs := []rules.Rule{{Kind: rules.KindForceDamage}, {Kind: rules.KindDissipateOnNoTarget}}
	assert.True(t, rules.Has(rs, rules.KindDissipateOnNoTarget))
	assert.False(t, rules.Has(rs, rules.KindConvert))
	r, ok := rules.Find(rs, rules.KindForceDamage)
	assert.True(t, ok)
	assert.Equal(t, rules.KindForceDamage, r.Kind)
}

func TestPropertyQuantity_ResolveWithinBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lo := rapid.IntRange(0, 50).Draw(t, "lo")
		hi := rapid.IntRange(lo, 100).Draw(t, "hi")
		seed := rapid.Uint64().Draw(t, "seed")
		v := rules.Between(lo, hi).Resolve(dice.NewSeededSource(seed))
		if v < lo || v > hi {
			t.Fatalf("resolved %d outside [%d, %d]", v, lo, hi)
		}
	})
}
