// Package world provides the strategic board model: enclaves, routes, map
// cells, orders, hazard markers and the immutable per-turn Snapshot.
package world

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cory-johannsen/enclaves/internal/game/rules"
)

// Faction identifies a side. The zero value is Neutral (unowned).
type Faction string

const (
	Neutral  Faction = ""
	FactionA Faction = "A"
	FactionB Faction = "B"
)

// Factions lists the playable sides in resolution order.
var Factions = []Faction{FactionA, FactionB}

// Opponent returns the other playable side, or Neutral for Neutral.
func (f Faction) Opponent() Faction {
	switch f {
	case FactionA:
		return FactionB
	case FactionB:
		return FactionA
	default:
		return Neutral
	}
}

// Valid reports whether f is Neutral or a playable side.
func (f Faction) Valid() bool {
	return f == Neutral || f == FactionA || f == FactionB
}

// String returns "neutral" for the zero value.
func (f Faction) String() string {
	if f == Neutral {
		return "neutral"
	}
	return string(f)
}

// ParseFaction accepts "A", "B", "neutral" or the empty string.
func ParseFaction(s string) (Faction, error) {
	switch s {
	case "", "neutral":
		return Neutral, nil
	case "A":
		return FactionA, nil
	case "B":
		return FactionB, nil
	}
	return Neutral, fmt.Errorf("unknown faction %q", s)
}

// Phase is a hazard phase name.
type Phase string

const (
	PhaseAlert     Phase = "alert"
	PhaseImpact    Phase = "impact"
	PhaseAftermath Phase = "aftermath"
)

// Permanent marks a Remaining counter that never decrements.
const Permanent = -1

// ActiveEffect is an enclave-scoped hazard consequence.
type ActiveEffect struct {
	// InstanceID links every effect spawned by the same marker.
	InstanceID uuid.UUID    `json:"instance_id"`
	ProfileKey string       `json:"profile"`
	Phase      Phase        `json:"phase"`
	Remaining  int          `json:"remaining"`
	Continuous []rules.Rule `json:"continuous,omitempty"`
	// OriginCell is the anchor cell of the marker that produced this effect.
	OriginCell int `json:"origin_cell"`

	// Mobile effects occupy Cell and drift each turn until MovesLeft runs out.
	Mobile      bool `json:"mobile,omitempty"`
	Cell        int  `json:"cell,omitempty"`
	MovesLeft   int  `json:"moves_left,omitempty"`
	AppliedTurn int  `json:"applied_turn,omitempty"`
}

// Enclave is an ownable territory.
type Enclave struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Owner     Faction `json:"owner"`
	Forces    int     `json:"forces"`
	DomainID  int     `json:"domain"`
	CellID    int     `json:"cell"`
	Territory []int   `json:"territory"`
	Archetype string  `json:"archetype,omitempty"`
	Capital   bool    `json:"capital,omitempty"`
	// OrderLock is the number of turns during which this enclave may not issue orders.
	OrderLock int `json:"order_lock,omitempty"`
	// Hidden is the number of turns this enclave's forces are concealed from the opponent.
	Hidden  int            `json:"hidden,omitempty"`
	Effects []ActiveEffect `json:"effects,omitempty"`
}

// Clone returns a deep copy of e.
func (e *Enclave) Clone() *Enclave {
	c := *e
	c.Territory = append([]int(nil), e.Territory...)
	if e.Effects != nil {
		c.Effects = make([]ActiveEffect, len(e.Effects))
		for i, eff := range e.Effects {
			eff.Continuous = append([]rules.Rule(nil), eff.Continuous...)
			c.Effects[i] = eff
		}
	}
	return &c
}

// Occupies reports whether cell belongs to e's territory.
func (e *Enclave) Occupies(cell int) bool {
	if e.CellID == cell {
		return true
	}
	for _, c := range e.Territory {
		if c == cell {
			return true
		}
	}
	return false
}

// Owned reports whether e belongs to a playable side.
func (e *Enclave) Owned() bool { return e.Owner != Neutral }

// Route is an undirected edge between two enclaves.
type Route struct {
	A             int  `json:"a"`
	B             int  `json:"b"`
	Destroyed     bool `json:"destroyed,omitempty"`
	DisabledTurns int  `json:"disabled,omitempty"`
}

// Usable reports whether orders may travel along r.
func (r Route) Usable() bool { return !r.Destroyed && r.DisabledTurns <= 0 }

// Connects reports whether r joins a and b in either direction.
func (r Route) Connects(a, b int) bool {
	return (r.A == a && r.B == b) || (r.A == b && r.B == a)
}

// Touches reports whether id is an endpoint of r.
func (r Route) Touches(id int) bool { return r.A == id || r.B == id }

// Other returns the endpoint of r opposite id.
func (r Route) Other(id int) int {
	if r.A == id {
		return r.B
	}
	return r.A
}

// OrderType is the intent carried by an Order.
type OrderType string

const (
	OrderAttack OrderType = "attack"
	OrderAssist OrderType = "assist"
)

// Order is one side's intent for one origin enclave. Absence means hold.
type Order struct {
	Origin  int       `json:"origin"`
	Target  int       `json:"target"`
	Type    OrderType `json:"type"`
	Faction Faction   `json:"faction"`
}

// Orders holds at most one Order per origin enclave.
type Orders map[int]Order

// Clone returns a shallow copy of o.
func (o Orders) Clone() Orders {
	out := make(Orders, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Sorted returns the orders in ascending origin order.
func (o Orders) Sorted() []Order {
	out := make([]Order, 0, len(o))
	for _, ord := range o {
		out = append(out, ord)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Origin < out[j].Origin })
	return out
}

// OfType returns the sorted orders with type t.
func (o Orders) OfType(t OrderType) []Order {
	var out []Order
	for _, ord := range o.Sorted() {
		if ord.Type == t {
			out = append(out, ord)
		}
	}
	return out
}

// Marker is a map-level hazard instance anchored to a cell.
type Marker struct {
	InstanceID uuid.UUID `json:"instance_id"`
	ProfileKey string    `json:"profile"`
	// PhaseIndex indexes the profile's phase list.
	PhaseIndex int `json:"phase_index"`
	Remaining  int `json:"remaining"`
	// Entered is false while the marker is pending its first phase.
	Entered bool `json:"entered"`
	Cell    int  `json:"cell"`
	// Hit lists the enclaves touched by the current phase.
	Hit []int `json:"hit,omitempty"`
}

// Snapshot is the complete board state between turns. Resolvers never
// mutate a Snapshot; they produce a new one.
type Snapshot struct {
	Turn     int              `json:"turn"`
	Enclaves map[int]*Enclave `json:"enclaves"`
	Routes   []Route          `json:"routes"`
	Markers  []Marker         `json:"markers,omitempty"`
	// Hazards lists the profile keys the ambient trigger may spawn.
	Hazards  []string `json:"hazards,omitempty"`
	GameOver bool     `json:"game_over,omitempty"`
	Winner   Faction  `json:"winner,omitempty"`
	Map      *Map     `json:"-"`
}

// Enclave returns the enclave with id, or (nil, false).
func (s *Snapshot) Enclave(id int) (*Enclave, bool) {
	e, ok := s.Enclaves[id]
	return e, ok
}

// EnclaveIDs returns every enclave id in ascending order.
func (s *Snapshot) EnclaveIDs() []int { return SortedIDs(s.Enclaves) }

// Count returns how many enclaves f owns.
func (s *Snapshot) Count(f Faction) int {
	n := 0
	for _, e := range s.Enclaves {
		if e.Owner == f {
			n++
		}
	}
	return n
}

// TotalForces sums every enclave's forces.
func (s *Snapshot) TotalForces() int {
	n := 0
	for _, e := range s.Enclaves {
		n += e.Forces
	}
	return n
}

// SortedIDs returns the keys of m in ascending order.
func SortedIDs[V any](m map[int]V) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SanitizeForces clamps a force read into [0, limit]. A limit <= 0 disables the upper bound.
func SanitizeForces(v, limit int) int {
	if v < 0 {
		return 0
	}
	if limit > 0 && v > limit {
		return limit
	}
	return v
}

// Clamp returns v bounded to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Validate checks snapshot invariants.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (s *Snapshot) Validate() error {
	if len(s.Enclaves) == 0 {
		return fmt.Errorf("snapshot must contain at least one enclave")
	}
	for id, e := range s.Enclaves {
		if e.ID != id {
			return fmt.Errorf("enclave key %d does not match enclave ID %d", id, e.ID)
		}
		if !e.Owner.Valid() {
			return fmt.Errorf("enclave %d: invalid owner %q", id, e.Owner)
		}
		if e.Forces < 0 {
			return fmt.Errorf("enclave %d: forces must be >= 0, got %d", id, e.Forces)
		}
		if s.Map != nil {
			if _, ok := s.Map.Cells[e.CellID]; !ok {
				return fmt.Errorf("enclave %d: unknown cell %d", id, e.CellID)
			}
		}
	}
	for i, r := range s.Routes {
		if r.A == r.B {
			return fmt.Errorf("route %d: endpoints must differ", i)
		}
		if _, ok := s.Enclaves[r.A]; !ok {
			return fmt.Errorf("route %d: unknown enclave %d", i, r.A)
		}
		if _, ok := s.Enclaves[r.B]; !ok {
			return fmt.Errorf("route %d: unknown enclave %d", i, r.B)
		}
	}
	return nil
}
