package tracking

import "fmt"

// ThirdLocationPolicy decides what happens to an agent that stops at a
// building that is neither its origin, its home nor its target.
type ThirdLocationPolicy string

const (
	// PolicyWait treats the stop as a waypoint and keeps tracking.
	PolicyWait ThirdLocationPolicy = "wait"
	// PolicyAbandon gives up the assignment once the agent's purpose is no
	// longer work-like.
	PolicyAbandon ThirdLocationPolicy = "abandon"
)

// Config defines progress monitor settings.
type Config struct {
	// IntervalMinutes is the number of simulated minutes between samples.
	IntervalMinutes int `json:"interval_minutes"`
	// StuckTimeoutMinutes is how long an agent may stay at its origin; it is
	// abandoned once it has stayed strictly longer.
	StuckTimeoutMinutes int                 `json:"stuck_timeout_minutes"`
	ThirdLocation       ThirdLocationPolicy `json:"third_location"`
	Workers             int                 `json:"workers"`
	PartitionSize       int                 `json:"partition_size"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 1
	}
	if c.StuckTimeoutMinutes <= 0 {
		c.StuckTimeoutMinutes = 30
	}
	if c.ThirdLocation == "" {
		c.ThirdLocation = PolicyWait
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PartitionSize <= 0 {
		c.PartitionSize = 256
	}
}

// Validate checks the policy value.
func (c Config) Validate() error {
	switch c.ThirdLocation {
	case PolicyWait, PolicyAbandon:
		return nil
	default:
		return fmt.Errorf("unknown third_location policy %q", c.ThirdLocation)
	}
}
