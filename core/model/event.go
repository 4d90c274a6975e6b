package model

import (
	"time"

	"github.com/kilianp07/volunteer/core/world"
)

// Outcome is the terminal state of an assignment.
type Outcome int

const (
	OutcomeArrived Outcome = iota
	OutcomeAbandoned
)

// String returns a human-readable representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeArrived:
		return "arrived"
	case OutcomeAbandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// AbandonReason explains why an assignment was given up.
type AbandonReason int

const (
	ReasonNone AbandonReason = iota
	ReasonGotJob
	ReasonReturnedHome
	ReasonStuckInBuilding
	ReasonWanderedOff
	ReasonAgentRemoved
	ReasonFacilityRemoved
)

func (r AbandonReason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonGotJob:
		return "got_job"
	case ReasonReturnedHome:
		return "returned_home"
	case ReasonStuckInBuilding:
		return "stuck_in_building"
	case ReasonWanderedOff:
		return "wandered_off"
	case ReasonAgentRemoved:
		return "agent_removed"
	case ReasonFacilityRemoved:
		return "facility_removed"
	default:
		return "unknown"
	}
}

// CompletionEvent reports the outcome of an assignment. It is produced by the
// progress monitor and drained exactly once by the resolver.
type CompletionEvent struct {
	Agent    world.Entity  `json:"agent"`
	Facility world.Entity  `json:"facility"`
	Request  world.Entity  `json:"request"`
	Outcome  Outcome       `json:"outcome"`
	Reason   AbandonReason `json:"reason"`
	// Location is the agent's observed location when the event was emitted.
	Location world.Entity `json:"location"`
	Tick     uint64       `json:"tick"`
	Time     time.Time    `json:"time"`
	// AssignedTick identifies the assignment the event closes.
	AssignedTick uint64 `json:"assigned_tick"`
}
