package simulator

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/volunteer/core/world"
)

type BuildingDef struct {
	Name string     `yaml:"name"`
	Pos  [2]float64 `yaml:"pos"`
}

type ParkDef struct {
	Name     string     `yaml:"name"`
	Pos      [2]float64 `yaml:"pos"`
	Capacity int        `yaml:"capacity"`
	Service  int        `yaml:"service"`
	// Failures opens a maintenance request with this failure count when > 0.
	Failures int `yaml:"failures,omitempty"`
	Refuse   int `yaml:"refuse,omitempty"`
}

type AgentDef struct {
	Name      string `yaml:"name"`
	Home      string `yaml:"home"`
	At        string `yaml:"at,omitempty"`
	Employed  bool   `yaml:"employed,omitempty"`
	Child     bool   `yaml:"child,omitempty"`
	Transient bool   `yaml:"transient,omitempty"`
	Car       bool   `yaml:"car,omitempty"`
}

// Scenario is a hand-written city loaded from YAML.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Config      Config        `yaml:"config"`
	City        *CityConfig   `yaml:"generate,omitempty"`
	Buildings   []BuildingDef `yaml:"buildings"`
	Parks       []ParkDef     `yaml:"parks"`
	Agents      []AgentDef    `yaml:"agents"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	data, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario.
func ParseScenario(data []byte) (Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return sc, fmt.Errorf("decode scenario: %w", err)
	}
	return sc, nil
}

// Build creates a world from the scenario and returns it together with the
// handles of every named entity.
func (sc Scenario) Build() (*World, map[string]world.Entity, error) {
	w := New(sc.Config)
	names := make(map[string]world.Entity, len(sc.Buildings)+len(sc.Parks)+len(sc.Agents))
	for _, b := range sc.Buildings {
		names[b.Name] = w.AddBuilding(b.Name, vec(b.Pos))
	}
	for _, p := range sc.Parks {
		id := w.AddPark(p.Name, vec(p.Pos), p.Capacity, p.Service)
		names[p.Name] = id
		if p.Failures > 0 {
			if _, err := w.AddRequest(id, p.Failures); err != nil {
				return nil, nil, err
			}
		}
		if p.Refuse > 0 {
			if err := w.SetRefuse(id, p.Refuse); err != nil {
				return nil, nil, err
			}
		}
	}
	for _, a := range sc.Agents {
		home, ok := names[a.Home]
		if !ok {
			return nil, nil, fmt.Errorf("agent %s: unknown home %q", a.Name, a.Home)
		}
		spec := AgentSpec{
			Name:      a.Name,
			Home:      home,
			Employed:  a.Employed,
			Child:     a.Child,
			Transient: a.Transient,
			Car:       a.Car,
		}
		if a.At != "" {
			at, ok := names[a.At]
			if !ok {
				return nil, nil, fmt.Errorf("agent %s: unknown building %q", a.Name, a.At)
			}
			spec.At = at
		}
		id, err := w.AddAgent(spec)
		if err != nil {
			return nil, nil, fmt.Errorf("agent %s: %w", a.Name, err)
		}
		names[a.Name] = id
	}
	if sc.City != nil {
		if err := Generate(w, *sc.City, sc.Config.Seed); err != nil {
			return nil, nil, err
		}
	}
	return w, names, nil
}

func vec(p [2]float64) r3.Vec { return r3.Vec{X: p[0], Y: p[1]} }
