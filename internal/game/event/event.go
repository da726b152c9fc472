// Package event holds the append-only records a turn produces for the
// presentation layer: narrative turn events and declarative audio/visual
// side effects.
package event

import "github.com/cory-johannsen/enclaves/internal/game/world"

// Kind classifies a turn event.
type Kind string

const (
	KindAttack   Kind = "attack"
	KindAssist   Kind = "assist"
	KindHold     Kind = "hold"
	KindConquest Kind = "conquest"
	KindHazard   Kind = "hazard"
)

// Event records one thing that happened during resolution.
type Event struct {
	Kind    Kind          `json:"kind"`
	Turn    int           `json:"turn"`
	Origin  int           `json:"origin,omitempty"`
	Target  int           `json:"target"`
	Faction world.Faction `json:"faction,omitempty"`
	// Forces is the amount moved, reinforced or left on the target, depending on Kind.
	Forces int `json:"forces"`
	// NewOwner is set on conquest events.
	NewOwner  world.Faction `json:"new_owner,omitempty"`
	Archetype string        `json:"archetype,omitempty"`
	// Profile and Phase are set on hazard events.
	Profile string      `json:"profile,omitempty"`
	Phase   world.Phase `json:"phase,omitempty"`
}

// SideEffect asks the presentation layer to play a sound and/or visual at a position.
type SideEffect struct {
	Cell int    `json:"cell"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
	SFX  string `json:"sfx,omitempty"`
	VFX  string `json:"vfx,omitempty"`
}

// Queue accumulates events and side effects in emission order for one turn.
// It is not safe for concurrent use.
type Queue struct {
	turn    int
	m       *world.Map
	events  []Event
	effects []SideEffect
}

// NewQueue creates an empty Queue stamping events with turn and resolving
// side-effect positions against m. m may be nil.
func NewQueue(turn int, m *world.Map) *Queue {
	return &Queue{turn: turn, m: m}
}

// Emit appends ev, stamping the queue's turn.
func (q *Queue) Emit(ev Event) {
	ev.Turn = q.turn
	q.events = append(q.events, ev)
}

// Play queues a side effect at cell. Records with neither sfx nor vfx are dropped.
func (q *Queue) Play(cell int, sfx, vfx string) {
	if sfx == "" && vfx == "" {
		return
	}
	x, y, _ := q.m.Position(cell)
	q.effects = append(q.effects, SideEffect{Cell: cell, X: x, Y: y, SFX: sfx, VFX: vfx})
}

// Events returns a copy of the emitted events.
func (q *Queue) Events() []Event {
	return append([]Event(nil), q.events...)
}

// SideEffects returns a copy of the queued side effects.
func (q *Queue) SideEffects() []SideEffect {
	return append([]SideEffect(nil), q.effects...)
}

// Count returns the number of events of kind k.
func (q *Queue) Count(k Kind) int {
	n := 0
	for _, ev := range q.events {
		if ev.Kind == k {
			n++
		}
	}
	return n
}
