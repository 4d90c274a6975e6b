package scenarios

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/volunteer/core/dispatch"
	"github.com/kilianp07/volunteer/core/tracking"
	"github.com/kilianp07/volunteer/simulator"
)

// Action is applied to a named agent before the world advances to Tick.
type Action struct {
	Tick   uint64 `yaml:"tick"`
	Kind   string `yaml:"kind"`
	Target string `yaml:"target"`
}

// Tuning holds the engine settings a scenario may override.
type Tuning struct {
	DispatchIntervalMinutes int    `yaml:"dispatch_interval_minutes"`
	MaxVolunteers           int    `yaml:"max_volunteers"`
	StuckTimeoutMinutes     int    `yaml:"stuck_timeout_minutes"`
	ThirdLocation           string `yaml:"third_location"`
}

func (t Tuning) DispatchConfig() dispatch.Config {
	cfg := dispatch.Config{
		IntervalMinutes:          t.DispatchIntervalMinutes,
		MaxVolunteersPerDispatch: t.MaxVolunteers,
	}
	cfg.SetDefaults()
	return cfg
}

func (t Tuning) MonitorConfig() tracking.Config {
	cfg := tracking.Config{
		StuckTimeoutMinutes: t.StuckTimeoutMinutes,
		ThirdLocation:       tracking.ThirdLocationPolicy(t.ThirdLocation),
	}
	cfg.SetDefaults()
	return cfg
}

type Expected struct {
	Dispatched int            `yaml:"dispatched"`
	Arrived    int            `yaml:"arrived"`
	Abandoned  map[string]int `yaml:"abandoned,omitempty"`
	Active     int            `yaml:"active"`
}

type Scenario struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	World       simulator.Scenario `yaml:"world"`
	Tuning      Tuning             `yaml:"tuning"`
	Ticks       int                `yaml:"ticks"`
	Actions     []Action           `yaml:"actions,omitempty"`
	Expected    Expected           `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if sc.Ticks <= 0 {
		return nil, fmt.Errorf("%s: ticks must be positive", path)
	}
	for _, a := range sc.Actions {
		if _, ok := actions[a.Kind]; !ok {
			return nil, fmt.Errorf("%s: unknown action %q", path, a.Kind)
		}
	}
	return &sc, nil
}
