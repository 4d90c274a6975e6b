package dispatch

import (
	"fmt"

	"github.com/kilianp07/volunteer/core/snapshot"
)

// Config defines dispatch-related settings.
type Config struct {
	// IntervalMinutes is the number of simulated minutes between passes.
	IntervalMinutes int `json:"interval_minutes"`
	// MaxVolunteersPerDispatch caps the assignments committed by one pass.
	MaxVolunteersPerDispatch int `json:"max_volunteers_per_dispatch"`
	// MinFailureCount is the number of failed maintenance attempts before a
	// facility qualifies for volunteers. nil selects the default; 0 is kept.
	MinFailureCount *int `json:"min_failure_count"`
	// MaintenanceThresholdPercent is the service percentage at or below which
	// a facility is considered underserviced. nil selects the default; 0 is
	// kept and only matches fully run-down facilities.
	MaintenanceThresholdPercent *int `json:"maintenance_threshold_percent"`
	MaxCandidates               int  `json:"max_candidates"`
	MaxFacilities               int  `json:"max_facilities"`
	// MaxCandidatesToCheck bounds the nearest-candidate search per facility.
	MaxCandidatesToCheck int `json:"max_candidates_to_check"`
	ScanWorkers          int `json:"scan_workers"`
	PartitionSize        int `json:"partition_size"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 10
	}
	if c.MaxVolunteersPerDispatch <= 0 {
		c.MaxVolunteersPerDispatch = 3
	}
	if c.MinFailureCount == nil {
		n := 2
		c.MinFailureCount = &n
	}
	if c.MaintenanceThresholdPercent == nil {
		pct := 50
		c.MaintenanceThresholdPercent = &pct
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 256
	}
	if c.MaxFacilities <= 0 {
		c.MaxFacilities = 64
	}
	if c.MaxCandidatesToCheck <= 0 {
		c.MaxCandidatesToCheck = 10
	}
	if c.ScanWorkers <= 0 {
		c.ScanWorkers = 4
	}
	if c.PartitionSize <= 0 {
		c.PartitionSize = 512
	}
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.MinFailureCount != nil && *c.MinFailureCount < 0 {
		return fmt.Errorf("min_failure_count must be >= 0, got %d", *c.MinFailureCount)
	}
	if p := c.MaintenanceThresholdPercent; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("maintenance_threshold_percent must be within [0,100], got %d", *p)
	}
	if c.MaxVolunteersPerDispatch > c.MaxFacilities {
		return fmt.Errorf("max_volunteers_per_dispatch (%d) exceeds max_facilities (%d)", c.MaxVolunteersPerDispatch, c.MaxFacilities)
	}
	return nil
}

// Threshold returns the effective maintenance threshold percent.
func (c Config) Threshold() int {
	if c.MaintenanceThresholdPercent == nil {
		return 50
	}
	return *c.MaintenanceThresholdPercent
}

// Limits converts the scan related settings. Call SetDefaults first.
func (c Config) Limits() snapshot.Limits {
	minFailures := 2
	if c.MinFailureCount != nil {
		minFailures = *c.MinFailureCount
	}
	return snapshot.Limits{
		MaxCandidates:               c.MaxCandidates,
		MaxFacilities:               c.MaxFacilities,
		MinFailureCount:             minFailures,
		MaintenanceThresholdPercent: c.Threshold(),
		Workers:                     c.ScanWorkers,
		PartitionSize:               c.PartitionSize,
	}
}
