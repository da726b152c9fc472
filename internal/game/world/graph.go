package world

import "sort"

// Cell is one node of the map graph.
type Cell struct {
	ID        int   `json:"id"`
	X         int   `json:"x"`
	Y         int   `json:"y"`
	Land      bool  `json:"land"`
	Neighbors []int `json:"neighbors"`
}

// Map is the static cell graph produced by world generation. It is shared
// by every snapshot of a match and never mutated after loading.
type Map struct {
	Name    string
	Cells   map[int]*Cell
	Domains map[int]string
}

// Global is the radius sentinel meaning "every reachable cell".
const Global = -1

// Within returns every cell reachable from origin in at most radius hops,
// origin included, in ascending id order. A negative radius is unbounded.
//
// Postcondition: result is empty iff origin is not a cell of m.
func (m *Map) Within(origin, radius int) []int {
	if _, ok := m.Cells[origin]; !ok {
		return nil
	}
	depth := map[int]int{origin: 0}
	queue := []int{origin}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if radius >= 0 && depth[cur] >= radius {
			continue
		}
		for _, n := range m.Cells[cur].Neighbors {
			if _, seen := depth[n]; seen {
				continue
			}
			if _, ok := m.Cells[n]; !ok {
				continue
			}
			depth[n] = depth[cur] + 1
			queue = append(queue, n)
		}
	}
	out := make([]int, 0, len(depth))
	for id := range depth {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Position returns the coordinates of cell, or (0, 0, false).
func (m *Map) Position(cell int) (int, int, bool) {
	if m == nil {
		return 0, 0, false
	}
	c, ok := m.Cells[cell]
	if !ok {
		return 0, 0, false
	}
	return c.X, c.Y, true
}

// LandCells returns every land cell id in ascending order.
func (m *Map) LandCells() []int {
	var out []int
	for id, c := range m.Cells {
		if c.Land {
			out = append(out, id)
		}
	}
	sort.Ints(out)
	return out
}

// CellIDs returns every cell id in ascending order.
func (m *Map) CellIDs() []int {
	out := make([]int, 0, len(m.Cells))
	for id := range m.Cells {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// EnclavesTouching returns the ids of enclaves whose territory intersects
// cells, in ascending order.
func EnclavesTouching(enclaves map[int]*Enclave, cells []int) []int {
	var out []int
	for _, id := range SortedIDs(enclaves) {
		e := enclaves[id]
		for _, c := range cells {
			if e.Occupies(c) {
				out = append(out, id)
				break
			}
		}
	}
	return out
}

// EnclaveAt returns the lowest-id enclave occupying cell.
func EnclaveAt(enclaves map[int]*Enclave, cell int) (int, bool) {
	for _, id := range SortedIDs(enclaves) {
		if enclaves[id].Occupies(cell) {
			return id, true
		}
	}
	return 0, false
}

// AdjacentEnclaves returns enclaves other than id whose territory borders
// id's territory on the cell graph, in ascending order.
func AdjacentEnclaves(m *Map, enclaves map[int]*Enclave, id int) []int {
	self, ok := enclaves[id]
	if m == nil || !ok {
		return nil
	}
	cells := append([]int{self.CellID}, self.Territory...)
	var border []int
	for _, c := range cells {
		if cell, ok := m.Cells[c]; ok {
			border = append(border, cell.Neighbors...)
		}
	}
	var out []int
	for _, other := range EnclavesTouching(enclaves, border) {
		if other != id {
			out = append(out, other)
		}
	}
	return out
}

// FindRoute returns the index of the route joining a and b.
func FindRoute(routes []Route, a, b int) (int, bool) {
	for i, r := range routes {
		if r.Connects(a, b) {
			return i, true
		}
	}
	return -1, false
}

// Reachable reports whether a usable route joins a and b.
func Reachable(routes []Route, a, b int) bool {
	for _, r := range routes {
		if r.Connects(a, b) && r.Usable() {
			return true
		}
	}
	return false
}

// Neighbors returns the enclaves joined to id by usable routes, ascending and deduplicated.
func Neighbors(routes []Route, id int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, r := range routes {
		if !r.Touches(id) || !r.Usable() {
			continue
		}
		o := r.Other(id)
		if o == id || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	sort.Ints(out)
	return out
}
