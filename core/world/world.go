package world

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrNotFound is returned when a handle no longer resolves to a live entity.
	ErrNotFound = errors.New("entity not found")
	// ErrNoCapability is returned when an entity lacks the component an
	// operation needs (no travel intent, no household, ...).
	ErrNoCapability = errors.New("entity lacks capability")
	// ErrAlreadyCompleted is returned when a request has already been closed.
	ErrAlreadyCompleted = errors.New("request already completed")
)

// Entity is an opaque handle into the host world. The version is bumped
// whenever an index is recycled so stale handles never resolve to a new entity.
type Entity struct {
	Index   uint32 `json:"index"`
	Version uint32 `json:"version"`
}

// IsZero reports whether e is the null handle.
func (e Entity) IsZero() bool { return e.Index == 0 && e.Version == 0 }

func (e Entity) String() string { return fmt.Sprintf("%d:%d", e.Index, e.Version) }

// Purpose is the travel intent an agent is currently following.
type Purpose int

const (
	// PurposeNone is the unset or transient intent seen while an agent
	// switches between trips.
	PurposeNone Purpose = iota
	PurposeGoingHome
	// PurposeGoingToWork is the work-like intent used for volunteer trips.
	PurposeGoingToWork
	PurposeLeisure
	PurposeShopping
	PurposeTraveling
)

func (p Purpose) String() string {
	switch p {
	case PurposeNone:
		return "none"
	case PurposeGoingHome:
		return "going_home"
	case PurposeGoingToWork:
		return "going_to_work"
	case PurposeLeisure:
		return "leisure"
	case PurposeShopping:
		return "shopping"
	case PurposeTraveling:
		return "traveling"
	default:
		return "unknown"
	}
}

// HealthState mirrors the citizen states that make an agent unavailable.
type HealthState int

const (
	HealthOK HealthState = iota
	HealthSick
	HealthInMeeting
	HealthDead
)

// Marker is the "is volunteering" component carried by dispatched agents.
// Its presence in the world is the only durable trace of an assignment.
type Marker struct {
	Target  Entity    `json:"target"`
	Request Entity    `json:"request"`
	Origin  Entity    `json:"origin"`
	Since   time.Time `json:"since"`
	Tick    uint64    `json:"tick"`
}

// Agent is a read-only view of a citizen-like entity.
type Agent struct {
	Entity    Entity
	Name      string
	Household bool
	Employed  bool
	Child     bool
	Health    HealthState
	// Building is the building the agent currently stands in, zero when in transit.
	Building Entity
	// Vehicle is the transport the agent currently rides, zero when none.
	Vehicle Entity
	Home    Entity
	Purpose Purpose
	// HasPurpose is false when the agent carries no travel intent component.
	HasPurpose   bool
	Routable     bool
	Volunteering bool
}

// Available reports whether the agent's state allows volunteering at all.
func (a Agent) Available() bool {
	return a.Health == HealthOK
}

// Location returns the building the agent stands in, falling back to its vehicle.
func (a Agent) Location() Entity {
	if !a.Building.IsZero() {
		return a.Building
	}
	return a.Vehicle
}

// Facility is a read-only view of a park-like entity.
type Facility struct {
	Entity       Entity
	Name         string
	ServiceLevel int
	Capacity     int
	// Request is the pending maintenance request, zero when none.
	Request Entity
	Refuse  int
	// RefuseRequest is the pending refuse-collection request, zero when none.
	RefuseRequest Entity
}

// ServicePercent returns the current service level as a percentage of capacity.
func (f Facility) ServicePercent() int {
	if f.Capacity <= 0 {
		return 0
	}
	return f.ServiceLevel * 100 / f.Capacity
}

// Request is a serviceable work item tracked by the world.
type Request struct {
	Entity    Entity
	Target    Entity
	Failures  int
	Completed bool
}

// Query is the read side of the host world. Implementations must be safe for
// concurrent use: snapshot extraction and progress sampling call it from
// several goroutines at once.
type Query interface {
	Exists(e Entity) bool
	// Agents returns the handles of all citizen-like agents in a stable order.
	Agents() []Entity
	// Facilities returns the handles of all park-like facilities in a stable order.
	Facilities() []Entity
	Agent(e Entity) (Agent, error)
	Facility(e Entity) (Facility, error)
	Request(e Entity) (Request, error)
	// Position returns the spatial position of a building or vehicle.
	Position(e Entity) (r3.Vec, error)
	Marker(agent Entity) (Marker, bool)
	// Marked returns every agent currently carrying a Marker.
	Marked() []Entity
	Name(e Entity) string
}

// Mutator is the write side of the host world. It is only called from the
// single-threaded commit and resolution stages.
type Mutator interface {
	EnqueueTrip(agent, target Entity, purpose Purpose) error
	ClearTrips(agent, target Entity) error
	SetPurpose(agent Entity, p Purpose) error
	SetMarker(agent Entity, m Marker) error
	ClearMarker(agent Entity) error
	SetServiceLevel(facility Entity, level int) error
	CompleteRequest(request, handler Entity) error
	ResetRefuse(facility Entity) error
}

// World combines both sides of the host world.
type World interface {
	Query
	Mutator
}

// Resolve reports the agent's current location and whether it could be determined.
func Resolve(a Agent) (Entity, bool) {
	loc := a.Location()
	return loc, !loc.IsZero()
}
