package world

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlScenarioFile is the top-level YAML structure for scenario files.
type yamlScenarioFile struct {
	Scenario yamlScenario `yaml:"scenario"`
}

// yamlScenario is the YAML representation of a generated world.
type yamlScenario struct {
	Name     string        `yaml:"name"`
	Hazards  []string      `yaml:"hazards"`
	Cells    []yamlCell    `yaml:"cells"`
	Domains  []yamlDomain  `yaml:"domains"`
	Enclaves []yamlEnclave `yaml:"enclaves"`
	Routes   []yamlRoute   `yaml:"routes"`
}

type yamlCell struct {
	ID        int   `yaml:"id"`
	X         int   `yaml:"x"`
	Y         int   `yaml:"y"`
	Land      bool  `yaml:"land"`
	Neighbors []int `yaml:"neighbors"`
}

type yamlDomain struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

type yamlEnclave struct {
	ID        int    `yaml:"id"`
	Name      string `yaml:"name"`
	Owner     string `yaml:"owner"`
	Forces    int    `yaml:"forces"`
	Domain    int    `yaml:"domain"`
	Cell      int    `yaml:"cell"`
	Territory []int  `yaml:"territory"`
	Archetype string `yaml:"archetype"`
	Capital   bool   `yaml:"capital"`
}

type yamlRoute struct {
	A int `yaml:"a"`
	B int `yaml:"b"`
}

// LoadScenarioFromFile reads and validates a single scenario YAML file.
//
// Precondition: path must point to a valid YAML scenario file.
// Postcondition: Returns a validated turn-zero Snapshot or a non-nil error.
func LoadScenarioFromFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file %s: %w", path, err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes parses and validates a scenario from YAML bytes.
//
// Precondition: data must be valid YAML conforming to the scenario schema.
// Postcondition: Returns a validated Snapshot with Turn == 1, or a non-nil error.
func LoadScenarioFromBytes(data []byte) (*Snapshot, error) {
	var file yamlScenarioFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}

	snap, err := convertYAMLScenario(file.Scenario)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("validating scenario: %w", err)
	}
	return snap, nil
}

// convertYAMLScenario converts the parsed YAML structures into domain types.
func convertYAMLScenario(ys yamlScenario) (*Snapshot, error) {
	m := &Map{
		Name:    ys.Name,
		Cells:   make(map[int]*Cell, len(ys.Cells)),
		Domains: make(map[int]string, len(ys.Domains)),
	}
	for _, yc := range ys.Cells {
		if _, dup := m.Cells[yc.ID]; dup {
			return nil, fmt.Errorf("duplicate cell ID %d", yc.ID)
		}
		m.Cells[yc.ID] = &Cell{ID: yc.ID, X: yc.X, Y: yc.Y, Land: yc.Land, Neighbors: yc.Neighbors}
	}
	for _, c := range m.Cells {
		for _, n := range c.Neighbors {
			if _, ok := m.Cells[n]; !ok {
				return nil, fmt.Errorf("cell %d: neighbor %d is not a cell", c.ID, n)
			}
		}
	}
	for _, yd := range ys.Domains {
		m.Domains[yd.ID] = strings.TrimSpace(yd.Name)
	}

	snap := &Snapshot{
		Turn:     1,
		Enclaves: make(map[int]*Enclave, len(ys.Enclaves)),
		Hazards:  ys.Hazards,
		Map:      m,
	}
	for _, ye := range ys.Enclaves {
		if _, dup := snap.Enclaves[ye.ID]; dup {
			return nil, fmt.Errorf("duplicate enclave ID %d", ye.ID)
		}
		owner, err := ParseFaction(ye.Owner)
		if err != nil {
			return nil, fmt.Errorf("enclave %d: %w", ye.ID, err)
		}
		if len(m.Domains) > 0 {
			if _, ok := m.Domains[ye.Domain]; !ok {
				return nil, fmt.Errorf("enclave %d: unknown domain %d", ye.ID, ye.Domain)
			}
		}
		territory := ye.Territory
		if len(territory) == 0 {
			territory = []int{ye.Cell}
		}
		snap.Enclaves[ye.ID] = &Enclave{
			ID:        ye.ID,
			Name:      ye.Name,
			Owner:     owner,
			Forces:    ye.Forces,
			DomainID:  ye.Domain,
			CellID:    ye.Cell,
			Territory: territory,
			Archetype: ye.Archetype,
			Capital:   ye.Capital,
		}
	}
	for _, yr := range ys.Routes {
		snap.Routes = append(snap.Routes, Route{A: yr.A, B: yr.B})
	}
	return snap, nil
}
