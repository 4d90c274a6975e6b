package model

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/world"
)

// Assignment links a dispatched agent to its target facility.
type Assignment struct {
	Agent    world.Entity `json:"agent"`
	Facility world.Entity `json:"facility"`
	// Request is the maintenance request that triggered the dispatch, zero when none.
	Request world.Entity `json:"request"`
	// Origin is the building the agent left from, used for stuck detection.
	Origin      world.Entity `json:"origin"`
	CreatedAt   time.Time    `json:"created_at"`
	CreatedTick uint64       `json:"created_tick"`
}

// Marker converts the record into the world component that mirrors it.
func (a Assignment) Marker() world.Marker {
	return world.Marker{
		Target:  a.Facility,
		Request: a.Request,
		Origin:  a.Origin,
		Since:   a.CreatedAt,
		Tick:    a.CreatedTick,
	}
}

// FromMarker rebuilds an assignment record from a marker found on agent.
func FromMarker(agent world.Entity, m world.Marker) Assignment {
	return Assignment{
		Agent:       agent,
		Facility:    m.Target,
		Request:     m.Request,
		Origin:      m.Origin,
		CreatedAt:   m.Since,
		CreatedTick: m.Tick,
	}
}

// Candidate is an eligible idle agent captured for a single pass.
type Candidate struct {
	Agent    world.Entity
	Position r3.Vec
}

// NeedyFacility is an underserviced facility captured for a single pass.
type NeedyFacility struct {
	Facility       world.Entity
	Request        world.Entity
	Position       r3.Vec
	FailureCount   int
	ServicePercent int
}

// Pair is one facility to agent match produced by the matcher.
type Pair struct {
	Candidate Candidate
	Facility  NeedyFacility
}
