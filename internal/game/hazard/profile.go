package hazard

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/enclaves/internal/game/dice"
	"github.com/cory-johannsen/enclaves/internal/game/rules"
	"github.com/cory-johannsen/enclaves/internal/game/world"
)

// ErrUnknownProfile is returned when a hazard profile key is not registered.
var ErrUnknownProfile = errors.New("hazard: unknown profile")

// Duration is a phase length: a fixed number of turns, a [min, max] range,
// or permanent. In YAML: `3`, `[2, 4]` or `permanent`.
type Duration struct {
	rules.Quantity
	Permanent bool
}

// Resolve returns a concrete turn count, or world.Permanent.
func (d Duration) Resolve(src dice.Source) int {
	if d.Permanent {
		return world.Permanent
	}
	n := d.Quantity.Resolve(src)
	if n < 1 {
		return 1
	}
	return n
}

// UnmarshalYAML accepts the literal "permanent" or any Quantity form.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && strings.EqualFold(node.Value, "permanent") {
		*d = Duration{Permanent: true}
		return nil
	}
	var q rules.Quantity
	if err := q.UnmarshalYAML(node); err != nil {
		return err
	}
	*d = Duration{Quantity: q}
	return nil
}

// Radius is an area of effect in cell-graph hops. Global reaches every cell.
// In YAML: `2` or `global`.
type Radius struct {
	Hops   int
	Global bool
}

// Value returns the hop count for world.Map.Within.
func (r Radius) Value() int {
	if r.Global {
		return world.Global
	}
	return r.Hops
}

// UnmarshalYAML accepts the literal "global" or a non-negative integer.
func (r *Radius) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && strings.EqualFold(node.Value, "global") {
		*r = Radius{Global: true}
		return nil
	}
	var n int
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("line %d: radius must be an integer or \"global\": %w", node.Line, err)
	}
	if n < 0 {
		return fmt.Errorf("line %d: radius must be >= 0, got %d", node.Line, n)
	}
	*r = Radius{Hops: n}
	return nil
}

// PhaseDef is one phase of a hazard profile.
type PhaseDef struct {
	Phase      world.Phase  `yaml:"phase"`
	Duration   Duration     `yaml:"duration"`
	Radius     Radius       `yaml:"radius"`
	SFX        string       `yaml:"sfx"`
	VFX        string       `yaml:"vfx"`
	Instant    []rules.Rule `yaml:"instant"`
	Continuous []rules.Rule `yaml:"continuous"`
}

// Profile is the static definition of a hazard, loaded from YAML.
type Profile struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
	// Mobile hazards spend their aftermath drifting cell to cell.
	Mobile bool `yaml:"mobile"`
	// Hook names a script whose on_continuous function overrides the
	// default continuous rules. Empty means no script.
	Hook string `yaml:"hook"`
	// Eligible restricts ambient spawn cells: "land" (default) or "any".
	Eligible string     `yaml:"eligible"`
	Phases   []PhaseDef `yaml:"phases"`
}

var phaseOrder = map[world.Phase]int{
	world.PhaseAlert:     0,
	world.PhaseImpact:    1,
	world.PhaseAftermath: 2,
}

// Validate checks profile invariants and compiles every rule guard.
//
// Postcondition: Returns nil if valid, or an error describing the first violation.
func (p *Profile) Validate() error {
	if p.Key == "" {
		return fmt.Errorf("hazard profile key must not be empty")
	}
	if len(p.Phases) == 0 {
		return fmt.Errorf("hazard %q: must declare at least one phase", p.Key)
	}
	switch p.Eligible {
	case "":
		p.Eligible = "land"
	case "land", "any":
	default:
		return fmt.Errorf("hazard %q: eligible must be one of [land, any], got %q", p.Key, p.Eligible)
	}
	last := -1
	for i := range p.Phases {
		ph := &p.Phases[i]
		ord, ok := phaseOrder[ph.Phase]
		if !ok {
			return fmt.Errorf("hazard %q: unknown phase %q", p.Key, ph.Phase)
		}
		if ord <= last {
			return fmt.Errorf("hazard %q: phase %q out of order", p.Key, ph.Phase)
		}
		last = ord
		if err := rules.Compile(ph.Instant); err != nil {
			return fmt.Errorf("hazard %q phase %q: %w", p.Key, ph.Phase, err)
		}
		if err := rules.Compile(ph.Continuous); err != nil {
			return fmt.Errorf("hazard %q phase %q: %w", p.Key, ph.Phase, err)
		}
	}
	if p.Mobile && p.PhaseIndex(world.PhaseAftermath) < 0 {
		return fmt.Errorf("hazard %q: mobile hazards need an aftermath phase", p.Key)
	}
	return nil
}

// PhaseIndex returns the index of phase in p.Phases, or -1.
func (p *Profile) PhaseIndex(phase world.Phase) int {
	for i, ph := range p.Phases {
		if ph.Phase == phase {
			return i
		}
	}
	return -1
}

// Registry holds all known Profiles keyed by Key.
type Registry struct {
	profiles map[string]*Profile
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[string]*Profile)}
}

// Register adds p to the registry, overwriting any existing entry with the same key.
// Precondition: p must not be nil and p.Key must not be empty.
func (r *Registry) Register(p *Profile) {
	r.profiles[p.Key] = p
}

// Get returns the Profile for key, or (nil, false) if not found.
func (r *Registry) Get(key string) (*Profile, bool) {
	p, ok := r.profiles[key]
	return p, ok
}

// Keys returns every registered key in ascending order.
func (r *Registry) Keys() []string {
	out := make([]string, 0, len(r.profiles))
	for k := range r.profiles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Profile,
// and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading hazard dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		p, err := ParseProfile(data)
		if err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		reg.Register(p)
	}
	return reg, nil
}

// ParseProfile decodes and validates a single profile.
func ParseProfile(data []byte) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}
