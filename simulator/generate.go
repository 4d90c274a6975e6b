package simulator

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/world"
)

// CityConfig holds parameters for bulk city generation.
type CityConfig struct {
	Buildings int     `json:"buildings" yaml:"buildings"`
	Parks     int     `json:"parks" yaml:"parks"`
	Agents    int     `json:"agents" yaml:"agents"`
	Size      float64 `json:"size" yaml:"size"`
	// EmployedPct, ChildPct and CarPct are fractions in [0,1].
	EmployedPct float64 `json:"employed_pct" yaml:"employed_pct"`
	ChildPct    float64 `json:"child_pct" yaml:"child_pct"`
	CarPct      float64 `json:"car_pct" yaml:"car_pct"`
	// NeglectedPct is the fraction of parks starting underserviced with failed requests.
	NeglectedPct float64 `json:"neglected_pct" yaml:"neglected_pct"`
}

// Generate populates w with a random city. Buildings are named bld0001..,
// parks park0001.. and agents are spread over the buildings as homes.
func Generate(w *World, cfg CityConfig, seed int64) error {
	if cfg.Buildings <= 0 && cfg.Agents > 0 {
		return fmt.Errorf("cannot place %d agents without buildings", cfg.Agents)
	}
	if cfg.Size <= 0 {
		cfg.Size = 10000
	}
	rng := rand.New(rand.NewSource(seed))
	pos := func() r3.Vec {
		return r3.Vec{X: rng.Float64() * cfg.Size, Y: rng.Float64() * cfg.Size}
	}
	homes := make([]world.Entity, cfg.Buildings)
	for i := range homes {
		homes[i] = w.AddBuilding(fmt.Sprintf("bld%04d", i+1), pos())
	}
	for i := 0; i < cfg.Parks; i++ {
		capacity := 100 + rng.Intn(400)
		service := capacity
		neglected := rng.Float64() < cfg.NeglectedPct
		if neglected {
			service = capacity * rng.Intn(40) / 100
		}
		p := w.AddPark(fmt.Sprintf("park%04d", i+1), pos(), capacity, service)
		if neglected {
			if _, err := w.AddRequest(p, 1+rng.Intn(5)); err != nil {
				return err
			}
		}
	}
	for i := 0; i < cfg.Agents; i++ {
		spec := AgentSpec{
			Name:     fmt.Sprintf("cit%05d", i+1),
			Home:     homes[rng.Intn(len(homes))],
			Employed: rng.Float64() < cfg.EmployedPct,
			Child:    rng.Float64() < cfg.ChildPct,
			Car:      rng.Float64() < cfg.CarPct,
			Purpose:  world.PurposeNone,
		}
		if _, err := w.AddAgent(spec); err != nil {
			return err
		}
	}
	return nil
}
