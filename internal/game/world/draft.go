package world

// Draft is a copy-on-write view over an enclave map. Reads fall through to
// the base map; the first Edit of an id clones that enclave. Commit returns
// a new map that shares every untouched enclave with the base.
//
// A Draft is not safe for concurrent use.
type Draft struct {
	base  map[int]*Enclave
	edits map[int]*Enclave
}

// NewDraft starts a draft over base. base is never mutated.
func NewDraft(base map[int]*Enclave) *Draft {
	return &Draft{base: base, edits: make(map[int]*Enclave)}
}

// Get returns the current view of enclave id. Callers must not mutate it;
// use Edit for that.
func (d *Draft) Get(id int) (*Enclave, bool) {
	if e, ok := d.edits[id]; ok {
		return e, true
	}
	e, ok := d.base[id]
	return e, ok
}

// Edit returns a private, mutable copy of enclave id.
//
// Postcondition: mutations to the returned enclave are invisible to the base map.
func (d *Draft) Edit(id int) (*Enclave, bool) {
	if e, ok := d.edits[id]; ok {
		return e, true
	}
	e, ok := d.base[id]
	if !ok {
		return nil, false
	}
	c := e.Clone()
	d.edits[id] = c
	return c, true
}

// Put replaces enclave e.ID in the draft with e.
func (d *Draft) Put(e *Enclave) { d.edits[e.ID] = e }

// Changed reports whether any enclave has been edited.
func (d *Draft) Changed() bool { return len(d.edits) > 0 }

// IDs returns every enclave id in ascending order.
func (d *Draft) IDs() []int { return SortedIDs(d.base) }

// Commit returns the resulting enclave map. When nothing was edited, the
// base map itself is returned.
func (d *Draft) Commit() map[int]*Enclave {
	if len(d.edits) == 0 {
		return d.base
	}
	out := make(map[int]*Enclave, len(d.base))
	for id, e := range d.base {
		out[id] = e
	}
	for id, e := range d.edits {
		out[id] = e
	}
	return out
}
