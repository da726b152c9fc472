package ai

import (
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// BuildView constructs the View for origin from the current board.
//
// Precondition: enclaves must not be nil.
// Postcondition: returns false if origin is not in enclaves.
func BuildView(enclaves map[int]*world.Enclave, routes []world.Route, origin, supplyCap int) (*View, bool) {
	o, ok := enclaves[origin]
	if !ok {
		return nil, false
	}
	v := &View{Origin: o, supplyCap: supplyCap}
	for _, id := range world.Neighbors(routes, origin) {
		n, ok := enclaves[id]
		if !ok || id == origin {
			continue
		}
		if n.Owned() && n.Owner == o.Owner {
			v.Assist = append(v.Assist, n)
		} else {
			v.Attack = append(v.Attack, n)
		}
	}
	return v, true
}
