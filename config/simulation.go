package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/simulator"
)

// SimulationConfig describes the simulated city hosting the engine.
type SimulationConfig struct {
	// Scenario is a YAML scenario file. When empty a city is generated.
	Scenario string `json:"scenario"`
	// TickIntervalMS is the wall-clock delay between two ticks.
	TickIntervalMS int                   `json:"tick_interval_ms"`
	World          simulator.Config      `json:"world"`
	City           *simulator.CityConfig `json:"city"`
}

// SetDefaults applies sane defaults.
func (c *SimulationConfig) SetDefaults() {
	if c.TickIntervalMS <= 0 {
		c.TickIntervalMS = 1000
	}
	if c.Scenario == "" && c.City == nil {
		c.City = &simulator.CityConfig{
			Buildings:    200,
			Parks:        40,
			Agents:       5000,
			EmployedPct:  0.5,
			ChildPct:     0.2,
			CarPct:       0.3,
			NeglectedPct: 0.4,
		}
	}
	c.World.SetDefaults()
}

// TickInterval returns TickIntervalMS as a duration.
func (c SimulationConfig) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// Validate checks value ranges.
func (c SimulationConfig) Validate() error {
	if c.City != nil {
		if c.City.Agents < 0 || c.City.Buildings < 0 || c.City.Parks < 0 {
			return fmt.Errorf("city sizes must not be negative")
		}
		if c.City.Agents > 0 && c.City.Buildings == 0 {
			return fmt.Errorf("city agents need at least one building")
		}
	}
	return nil
}

// Build creates the simulated world. Named scenario entities are returned
// for scenarios; generated cities return an empty map.
func (c SimulationConfig) Build() (*simulator.World, map[string]world.Entity, error) {
	if c.Scenario != "" {
		sc, err := simulator.LoadScenario(c.Scenario)
		if err != nil {
			return nil, nil, fmt.Errorf("load scenario: %w", err)
		}
		return sc.Build()
	}
	w := simulator.New(c.World)
	if c.City != nil {
		if err := simulator.Generate(w, *c.City, c.World.Seed); err != nil {
			return nil, nil, fmt.Errorf("generate city: %w", err)
		}
	}
	return w, map[string]world.Entity{}, nil
}
