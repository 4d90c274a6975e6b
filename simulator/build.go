package simulator

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/world"
)

// AgentSpec describes an agent to add. The zero value is an idle, routable
// household adult standing at home.
type AgentSpec struct {
	Name string
	Home world.Entity
	// At is the starting building, defaults to Home.
	At         world.Entity
	Employed   bool
	Child      bool
	Transient  bool
	Health     world.HealthState
	Car        bool
	Unroutable bool
	NoPurpose  bool
	Purpose    world.Purpose
}

// AddBuilding adds a plain building at pos.
func (w *World) AddBuilding(name string, pos r3.Vec) world.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.alloc(kindBuilding)
	w.slots[e.Index].b = &building{name: name, pos: pos}
	return e
}

// AddPark adds a park-like facility with the given capacity and current service level.
func (w *World) AddPark(name string, pos r3.Vec, capacity, service int) world.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	if service > capacity {
		service = capacity
	}
	e := w.alloc(kindPark)
	w.slots[e.Index].b = &building{name: name, pos: pos, park: &park{capacity: capacity, service: service}}
	return e
}

// AddVehicle adds a free-standing vehicle at pos.
func (w *World) AddVehicle(pos r3.Vec) world.Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	e := w.alloc(kindVehicle)
	w.slots[e.Index].v = &vehicle{pos: pos}
	return e
}

// AddAgent adds an agent described by spec.
func (w *World) AddAgent(spec AgentSpec) (world.Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	at := spec.At
	if at.IsZero() {
		at = spec.Home
	}
	var pos r3.Vec
	if !at.IsZero() {
		s, ok := w.lookup(at)
		if !ok || (s.kind != kindBuilding && s.kind != kindPark) {
			return world.Entity{}, fmt.Errorf("start building %v: %w", at, world.ErrNotFound)
		}
		pos = s.b.pos
	}
	if !spec.Home.IsZero() {
		if s, ok := w.lookup(spec.Home); !ok || s.kind != kindBuilding {
			return world.Entity{}, fmt.Errorf("home %v: %w", spec.Home, world.ErrNotFound)
		}
	}
	e := w.alloc(kindAgent)
	a := &agent{
		name:      spec.Name,
		household: !spec.Transient,
		employed:  spec.Employed,
		child:     spec.Child,
		health:    spec.Health,
		building:  at,
		home:      spec.Home,
		purpose:   spec.Purpose,
		noPurpose: spec.NoPurpose,
		routable:  !spec.Unroutable,
	}
	if a.name == "" {
		a.name = fmt.Sprintf("Citizen %d", e.Index)
	}
	w.slots[e.Index].a = a
	if spec.Car {
		car := w.alloc(kindVehicle)
		w.slots[car.Index].v = &vehicle{pos: pos, owner: e}
		a.car = car
	}
	return e, nil
}

// AddRequest opens a maintenance request on park with the given failure count.
func (w *World) AddRequest(parkID world.Entity, failures int) (world.Entity, error) {
	return w.addRequest(parkID, RequestMaintenance, failures)
}

// AddRefuseRequest opens a refuse-collection request on park.
func (w *World) AddRefuseRequest(parkID world.Entity) (world.Entity, error) {
	return w.addRequest(parkID, RequestRefuse, 0)
}

func (w *World) addRequest(parkID world.Entity, k RequestKind, failures int) (world.Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.parkLocked(parkID)
	if err != nil {
		return world.Entity{}, err
	}
	return w.openRequestLocked(parkID, b.park, k, failures), nil
}

func (w *World) openRequestLocked(parkID world.Entity, p *park, k RequestKind, failures int) world.Entity {
	e := w.alloc(kindRequest)
	w.slots[e.Index].r = &request{kind: k, target: parkID, failures: failures}
	if k == RequestRefuse {
		p.refuseRequest = e
	} else {
		p.request = e
	}
	return e
}

func (w *World) withAgent(id world.Entity, fn func(a *agent)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	fn(a)
	return nil
}

// SetEmployed changes the employment status of an agent.
func (w *World) SetEmployed(id world.Entity, employed bool) error {
	return w.withAgent(id, func(a *agent) { a.employed = employed })
}

// SetHealth changes the health state of an agent.
func (w *World) SetHealth(id world.Entity, h world.HealthState) error {
	return w.withAgent(id, func(a *agent) { a.health = h })
}

// SetStuck freezes or releases an agent. A stuck agent never departs.
func (w *World) SetStuck(id world.Entity, stuck bool) error {
	return w.withAgent(id, func(a *agent) { a.stuck = stuck })
}

// SetRoutable toggles whether trips can be enqueued on an agent.
func (w *World) SetRoutable(id world.Entity, routable bool) error {
	return w.withAgent(id, func(a *agent) { a.routable = routable })
}

// ForcePurpose overwrites the agent's travel intent without touching its trips.
func (w *World) ForcePurpose(id world.Entity, p world.Purpose) error {
	return w.withAgent(id, func(a *agent) {
		a.purpose = p
		a.noPurpose = false
	})
}

// MoveAgent places an agent inside a building, leaving any vehicle.
func (w *World) MoveAgent(id, to world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(id)
	if err != nil {
		return err
	}
	s, ok := w.lookup(to)
	if !ok || (s.kind != kindBuilding && s.kind != kindPark) {
		return world.ErrNotFound
	}
	a.building = to
	a.vehicle = world.Entity{}
	a.progress = 0
	if cs, ok := w.lookup(a.car); ok {
		cs.v.pos = s.b.pos
	}
	return nil
}

// PutInTransit takes an agent out of its building. It rides its car when it
// has one, otherwise its location becomes unresolvable.
func (w *World) PutInTransit(id world.Entity) error {
	return w.withAgent(id, func(a *agent) {
		a.building = world.Entity{}
		a.vehicle = a.car
	})
}

// SetRefuse sets the accumulated refuse at a park.
func (w *World) SetRefuse(parkID world.Entity, refuse int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.parkLocked(parkID)
	if err != nil {
		return err
	}
	b.park.refuse = refuse
	return nil
}
