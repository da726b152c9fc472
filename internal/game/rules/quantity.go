package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
)

// Quantity is a fixed integer or an inclusive [Min, Max] range.
// In YAML it is written either as a scalar (`3`) or a pair (`[2, 5]`).
type Quantity struct {
	Min int
	Max int
}

// Fixed returns a Quantity that always resolves to n.
func Fixed(n int) Quantity { return Quantity{Min: n, Max: n} }

// Between returns a Quantity resolving uniformly within [lo, hi].
func Between(lo, hi int) Quantity { return Quantity{Min: lo, Max: hi} }

// IsRange reports whether resolving q consumes randomness.
func (q Quantity) IsRange() bool { return q.Min != q.Max }

// Resolve returns a concrete value, drawing from src when q is a range.
//
// Postcondition: min(Min, Max) <= result <= max(Min, Max).
func (q Quantity) Resolve(src dice.Source) int {
	return dice.Range(src, q.Min, q.Max)
}

// ResolveOr resolves q, or returns def when q is nil.
func (q *Quantity) ResolveOr(src dice.Source, def int) int {
	if q == nil {
		return def
	}
	return q.Resolve(src)
}

// UnmarshalYAML accepts a scalar integer or a two-element sequence.
func (q *Quantity) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var n int
		if err := node.Decode(&n); err != nil {
			return fmt.Errorf("line %d: quantity must be an integer: %w", node.Line, err)
		}
		*q = Fixed(n)
		return nil
	case yaml.SequenceNode:
		var pair []int
		if err := node.Decode(&pair); err != nil {
			return fmt.Errorf("line %d: quantity range must be integers: %w", node.Line, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: quantity range must have exactly 2 elements, got %d", node.Line, len(pair))
		}
		*q = Between(pair[0], pair[1])
		return nil
	default:
		return fmt.Errorf("line %d: quantity must be an integer or [min, max]", node.Line)
	}
}

// MarshalYAML writes fixed quantities as scalars and ranges as pairs.
func (q Quantity) MarshalYAML() (interface{}, error) {
	if !q.IsRange() {
		return q.Min, nil
	}
	return []int{q.Min, q.Max}, nil
}
