package simulator

import "time"

// Config holds the dynamics of the simulated city. Rates are probabilities
// applied once per simulated minute.
type Config struct {
	Seed           int64     `json:"seed" yaml:"seed"`
	Start          time.Time `json:"start" yaml:"start"`
	MinutesPerTick int       `json:"minutes_per_tick" yaml:"minutes_per_tick"`
	// WalkSpeed and DriveSpeed are distances covered per simulated minute.
	WalkSpeed  float64 `json:"walk_speed" yaml:"walk_speed"`
	DriveSpeed float64 `json:"drive_speed" yaml:"drive_speed"`

	DecayPerMinute          int     `json:"decay_per_minute" yaml:"decay_per_minute"`
	RequestThresholdPercent int     `json:"request_threshold_percent" yaml:"request_threshold_percent"`
	FailureRate             float64 `json:"failure_rate" yaml:"failure_rate"`
	RefusePerMinute         int     `json:"refuse_per_minute" yaml:"refuse_per_minute"`
	RefuseThreshold         int     `json:"refuse_threshold" yaml:"refuse_threshold"`

	JobRate     float64 `json:"job_rate" yaml:"job_rate"`
	JobLossRate float64 `json:"job_loss_rate" yaml:"job_loss_rate"`
	// LeisureRate is the chance an idle agent at home starts a round trip.
	LeisureRate float64 `json:"leisure_rate" yaml:"leisure_rate"`
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Start.IsZero() {
		c.Start = time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)
	}
	if c.MinutesPerTick <= 0 {
		c.MinutesPerTick = 1
	}
	if c.WalkSpeed <= 0 {
		c.WalkSpeed = 80
	}
	if c.DriveSpeed <= 0 {
		c.DriveSpeed = 500
	}
	if c.RequestThresholdPercent <= 0 {
		c.RequestThresholdPercent = 50
	}
	if c.RefuseThreshold <= 0 {
		c.RefuseThreshold = 100
	}
}
