// Package rules defines the data-described effect instructions applied by
// hazards. A Rule is a closed tagged union: Kind selects which payload fields
// are meaningful. Rules are decoded from YAML and never mutated afterwards.
package rules

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Kind discriminates the Rule variants.
type Kind string

// Known rule kinds. Decoding accepts any string; kinds outside this set are
// ignored by the interpreter.
const (
	KindForceDamage            Kind = "forceDamage"
	KindDisableRoutes          Kind = "disableRoutes"
	KindDestroyRoutes          Kind = "destroyRoutes"
	KindStatModifier           Kind = "statModifier"
	KindConvert                Kind = "convert"
	KindSetForces              Kind = "setForces"
	KindCreateRoutes           Kind = "createRoutes"
	KindCancelOrders           Kind = "cancelOrders"
	KindLockOrders             Kind = "lockOrders"
	KindApplyAftermathOnChance Kind = "applyAftermathOnChance"
	KindHideEnemyForces        Kind = "hideEnemyForces"
	KindGrantForcesToCapital   Kind = "grantForcesToCapital"
	KindSummonDisaster         Kind = "summonDisaster"
	KindDissipateOnNoTarget    Kind = "dissipateOnNoTarget"
)

var knownKinds = map[Kind]bool{
	KindForceDamage:            true,
	KindDisableRoutes:          true,
	KindDestroyRoutes:          true,
	KindStatModifier:           true,
	KindConvert:                true,
	KindSetForces:              true,
	KindCreateRoutes:           true,
	KindCancelOrders:           true,
	KindLockOrders:             true,
	KindApplyAftermathOnChance: true,
	KindHideEnemyForces:        true,
	KindGrantForcesToCapital:   true,
	KindSummonDisaster:         true,
	KindDissipateOnNoTarget:    true,
}

// Known reports whether k is one of the kinds the interpreter understands.
func (k Kind) Known() bool { return knownKinds[k] }

// Stat names the scalar a statModifier reduces.
type Stat string

const (
	StatProduction Stat = "production"
	StatCombat     Stat = "combat"
)

// Rule is one effect instruction.
//
// Field use per kind:
//   - forceDamage: Amount (flat) or Percent (of current forces)
//   - disableRoutes: Turns, Chance
//   - destroyRoutes: Chance
//   - statModifier: Stat, Reduction
//   - convert: To ("A", "B" or "neutral"), Chance
//   - setForces: Amount
//   - createRoutes: Count
//   - lockOrders, hideEnemyForces: Turns
//   - applyAftermathOnChance: Chance
//   - grantForcesToCapital: Amount
//   - summonDisaster: Profile, Chance
type Rule struct {
	Kind      Kind      `yaml:"kind"`
	Amount    *Quantity `yaml:"amount,omitempty"`
	Percent   *Quantity `yaml:"percent,omitempty"`
	Turns     *Quantity `yaml:"turns,omitempty"`
	Chance    *float64  `yaml:"chance,omitempty"`
	Stat      Stat      `yaml:"stat,omitempty"`
	Reduction float64   `yaml:"reduction,omitempty"`
	To        string    `yaml:"to,omitempty"`
	Count     int       `yaml:"count,omitempty"`
	Profile   string    `yaml:"profile,omitempty"`
	// When is an optional boolean expression over Env. Empty means always.
	When string `yaml:"when,omitempty"`

	program *vm.Program
}

// Probability returns the rule's chance, defaulting to 1 when unset.
func (r Rule) Probability() float64 {
	if r.Chance == nil {
		return 1
	}
	return *r.Chance
}

// Env is the evaluation environment exposed to When guards.
type Env struct {
	Forces    int
	Owner     string
	Capital   bool
	Archetype string
	Turn      int
}

// Allows reports whether the rule's guard admits env.
// A rule without a guard always applies. A guard that fails at runtime
// is treated as false.
//
// Precondition: Compile has been called on any rule carrying a When guard.
func (r Rule) Allows(env Env) bool {
	if r.When == "" {
		return true
	}
	prog := r.program
	if prog == nil {
		var err error
		prog, err = compileGuard(r.When)
		if err != nil {
			return false
		}
	}
	out, err := vm.Run(prog, env)
	if err != nil {
		return false
	}
	ok, _ := out.(bool)
	return ok
}

func compileGuard(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(Env{}), expr.AsBool())
}

// Compile compiles every When guard in rs in place.
//
// Postcondition: On success every guarded rule carries a compiled program.
func Compile(rs []Rule) error {
	for i := range rs {
		if rs[i].When == "" {
			continue
		}
		prog, err := compileGuard(rs[i].When)
		if err != nil {
			return fmt.Errorf("compiling %s guard %q: %w", rs[i].Kind, rs[i].When, err)
		}
		rs[i].program = prog
	}
	return nil
}

// Find returns the first rule of kind k in rs.
func Find(rs []Rule, k Kind) (Rule, bool) {
	for _, r := range rs {
		if r.Kind == k {
			return r, true
		}
	}
	return Rule{}, false
}

// Has reports whether rs contains a rule of kind k.
func Has(rs []Rule, k Kind) bool {
	_, ok := Find(rs, k)
	return ok
}
