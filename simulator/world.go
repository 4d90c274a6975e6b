package simulator

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/world"
)

type kind uint8

const (
	kindFree kind = iota
	kindBuilding
	kindPark
	kindVehicle
	kindAgent
	kindRequest
)

// RequestKind distinguishes maintenance requests from refuse collection.
type RequestKind int

const (
	RequestMaintenance RequestKind = iota
	RequestRefuse
)

type trip struct {
	target  world.Entity
	purpose world.Purpose
}

type building struct {
	name string
	pos  r3.Vec
	park *park
}

type park struct {
	service       int
	capacity      int
	request       world.Entity
	refuse        int
	refuseRequest world.Entity
}

type vehicle struct {
	pos   r3.Vec
	owner world.Entity
}

type agent struct {
	name      string
	household bool
	employed  bool
	child     bool
	health    world.HealthState
	building  world.Entity
	vehicle   world.Entity
	car       world.Entity
	home      world.Entity
	purpose   world.Purpose
	noPurpose bool
	routable  bool
	stuck     bool
	marker    *world.Marker
	trips     []trip
	// progress is the distance already covered on the active trip.
	progress float64
	from     r3.Vec
}

type request struct {
	kind        RequestKind
	target      world.Entity
	failures    int
	completed   bool
	handler     world.Entity
	completions int
}

type slot struct {
	version uint32
	kind    kind
	b       *building
	v       *vehicle
	a       *agent
	r       *request
}

// World is an in-memory world.World used by the simulate command, the service
// and the engine tests. All methods are safe for concurrent use.
type World struct {
	mu    sync.RWMutex
	cfg   Config
	slots []slot
	free  []uint32
	tick  uint64
	now   time.Time
	rng   *rand.Rand
}

// New returns an empty world. Index 0 is reserved so the zero Entity never resolves.
func New(cfg Config) *World {
	cfg.SetDefaults()
	return &World{
		cfg:   cfg,
		slots: make([]slot, 1, 64),
		now:   cfg.Start,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (w *World) alloc(k kind) world.Entity {
	var idx uint32
	if n := len(w.free); n > 0 {
		idx = w.free[n-1]
		w.free = w.free[:n-1]
	} else {
		w.slots = append(w.slots, slot{})
		idx = uint32(len(w.slots) - 1)
	}
	s := &w.slots[idx]
	s.version++
	s.kind = k
	return world.Entity{Index: idx, Version: s.version}
}

func (w *World) lookup(e world.Entity) (*slot, bool) {
	if e.Index == 0 || int(e.Index) >= len(w.slots) {
		return nil, false
	}
	s := &w.slots[e.Index]
	if s.kind == kindFree || s.version != e.Version {
		return nil, false
	}
	return s, true
}

func (w *World) agentLocked(e world.Entity) (*agent, error) {
	s, ok := w.lookup(e)
	if !ok {
		return nil, world.ErrNotFound
	}
	if s.kind != kindAgent {
		return nil, fmt.Errorf("%v is not an agent: %w", e, world.ErrNoCapability)
	}
	return s.a, nil
}

func (w *World) parkLocked(e world.Entity) (*building, error) {
	s, ok := w.lookup(e)
	if !ok {
		return nil, world.ErrNotFound
	}
	if s.kind != kindPark {
		return nil, fmt.Errorf("%v is not a park: %w", e, world.ErrNoCapability)
	}
	return s.b, nil
}

// Remove deletes e from the world. The slot version is bumped on reuse so
// handles captured earlier stop resolving.
func (w *World) Remove(e world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.lookup(e)
	if !ok {
		return world.ErrNotFound
	}
	if s.kind == kindAgent && !s.a.car.IsZero() {
		if cs, ok := w.lookup(s.a.car); ok {
			*cs = slot{version: cs.version}
			w.free = append(w.free, s.a.car.Index)
		}
	}
	*s = slot{version: s.version}
	w.free = append(w.free, e.Index)
	return nil
}

// Exists implements world.Query.
func (w *World) Exists(e world.Entity) bool {
	w.mu.RLock()
	_, ok := w.lookup(e)
	w.mu.RUnlock()
	return ok
}

func (w *World) list(k kind) []world.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var res []world.Entity
	for i := 1; i < len(w.slots); i++ {
		if w.slots[i].kind == k {
			res = append(res, world.Entity{Index: uint32(i), Version: w.slots[i].version})
		}
	}
	return res
}

// Agents implements world.Query.
func (w *World) Agents() []world.Entity { return w.list(kindAgent) }

// Facilities implements world.Query.
func (w *World) Facilities() []world.Entity { return w.list(kindPark) }

// Agent implements world.Query.
func (w *World) Agent(e world.Entity) (world.Agent, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(e)
	if err != nil {
		return world.Agent{}, err
	}
	return world.Agent{
		Entity:       e,
		Name:         a.name,
		Household:    a.household,
		Employed:     a.employed,
		Child:        a.child,
		Health:       a.health,
		Building:     a.building,
		Vehicle:      a.vehicle,
		Home:         a.home,
		Purpose:      a.purpose,
		HasPurpose:   !a.noPurpose,
		Routable:     a.routable,
		Volunteering: a.marker != nil,
	}, nil
}

// Facility implements world.Query.
func (w *World) Facility(e world.Entity) (world.Facility, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	b, err := w.parkLocked(e)
	if err != nil {
		return world.Facility{}, err
	}
	return world.Facility{
		Entity:        e,
		Name:          b.name,
		ServiceLevel:  b.park.service,
		Capacity:      b.park.capacity,
		Request:       b.park.request,
		Refuse:        b.park.refuse,
		RefuseRequest: b.park.refuseRequest,
	}, nil
}

// Request implements world.Query.
func (w *World) Request(e world.Entity) (world.Request, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.lookup(e)
	if !ok {
		return world.Request{}, world.ErrNotFound
	}
	if s.kind != kindRequest {
		return world.Request{}, fmt.Errorf("%v is not a request: %w", e, world.ErrNoCapability)
	}
	return world.Request{Entity: e, Target: s.r.target, Failures: s.r.failures, Completed: s.r.completed}, nil
}

// Position implements world.Query.
func (w *World) Position(e world.Entity) (r3.Vec, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.lookup(e)
	if !ok {
		return r3.Vec{}, world.ErrNotFound
	}
	switch s.kind {
	case kindBuilding, kindPark:
		return s.b.pos, nil
	case kindVehicle:
		return s.v.pos, nil
	default:
		return r3.Vec{}, fmt.Errorf("%v has no position: %w", e, world.ErrNoCapability)
	}
}

// Marker implements world.Query.
func (w *World) Marker(e world.Entity) (world.Marker, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(e)
	if err != nil || a.marker == nil {
		return world.Marker{}, false
	}
	return *a.marker, true
}

// Marked implements world.Query.
func (w *World) Marked() []world.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var res []world.Entity
	for i := 1; i < len(w.slots); i++ {
		s := &w.slots[i]
		if s.kind == kindAgent && s.a.marker != nil {
			res = append(res, world.Entity{Index: uint32(i), Version: s.version})
		}
	}
	return res
}

// Name implements world.Query.
func (w *World) Name(e world.Entity) string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.lookup(e)
	if !ok {
		return ""
	}
	switch s.kind {
	case kindBuilding, kindPark:
		return s.b.name
	case kindAgent:
		return s.a.name
	default:
		return ""
	}
}

// EnqueueTrip implements world.Mutator. The first queued trip sets the
// agent's purpose immediately.
func (w *World) EnqueueTrip(agentID, target world.Entity, p world.Purpose) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(agentID)
	if err != nil {
		return err
	}
	if !a.routable {
		return fmt.Errorf("agent %v cannot be routed: %w", agentID, world.ErrNoCapability)
	}
	s, ok := w.lookup(target)
	if !ok {
		return world.ErrNotFound
	}
	if s.kind != kindBuilding && s.kind != kindPark {
		return fmt.Errorf("trip target %v: %w", target, world.ErrNoCapability)
	}
	a.trips = append(a.trips, trip{target: target, purpose: p})
	if len(a.trips) == 1 {
		a.purpose = p
		a.noPurpose = false
		a.progress = 0
	}
	return nil
}

// ClearTrips implements world.Mutator.
func (w *World) ClearTrips(agentID, target world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(agentID)
	if err != nil {
		return err
	}
	kept := a.trips[:0]
	for i, t := range a.trips {
		if t.target == target {
			if i == 0 {
				a.progress = 0
			}
			continue
		}
		kept = append(kept, t)
	}
	a.trips = kept
	return nil
}

// SetPurpose implements world.Mutator.
func (w *World) SetPurpose(agentID world.Entity, p world.Purpose) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(agentID)
	if err != nil {
		return err
	}
	if a.noPurpose {
		return world.ErrNoCapability
	}
	a.purpose = p
	return nil
}

// SetMarker implements world.Mutator.
func (w *World) SetMarker(agentID world.Entity, m world.Marker) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(agentID)
	if err != nil {
		return err
	}
	a.marker = &m
	return nil
}

// ClearMarker implements world.Mutator.
func (w *World) ClearMarker(agentID world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, err := w.agentLocked(agentID)
	if err != nil {
		return err
	}
	a.marker = nil
	return nil
}

// SetServiceLevel implements world.Mutator.
func (w *World) SetServiceLevel(e world.Entity, level int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.parkLocked(e)
	if err != nil {
		return err
	}
	if level > b.park.capacity {
		level = b.park.capacity
	}
	if level < 0 {
		level = 0
	}
	b.park.service = level
	return nil
}

// CompleteRequest implements world.Mutator. A completed request is detached
// from its facility but kept so completions can be inspected.
func (w *World) CompleteRequest(e, handler world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.lookup(e)
	if !ok {
		return world.ErrNotFound
	}
	if s.kind != kindRequest {
		return fmt.Errorf("%v is not a request: %w", e, world.ErrNoCapability)
	}
	r := s.r
	if r.completed {
		return world.ErrAlreadyCompleted
	}
	r.completed = true
	r.completions++
	r.handler = handler
	if ps, ok := w.lookup(r.target); ok && ps.kind == kindPark {
		switch {
		case ps.b.park.request == e:
			ps.b.park.request = world.Entity{}
		case ps.b.park.refuseRequest == e:
			ps.b.park.refuseRequest = world.Entity{}
		}
	}
	return nil
}

// ResetRefuse implements world.Mutator.
func (w *World) ResetRefuse(e world.Entity) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, err := w.parkLocked(e)
	if err != nil {
		return err
	}
	b.park.refuse = 0
	return nil
}

// Trips returns the targets of the agent's pending trips in order.
func (w *World) Trips(agentID world.Entity) []world.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	a, err := w.agentLocked(agentID)
	if err != nil {
		return nil
	}
	res := make([]world.Entity, len(a.trips))
	for i, t := range a.trips {
		res[i] = t.target
	}
	return res
}

// Completions returns how many times request e was closed.
func (w *World) Completions(e world.Entity) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.lookup(e)
	if !ok || s.kind != kindRequest {
		return 0
	}
	return s.r.completions
}

// Handler returns the agent credited with closing request e.
func (w *World) Handler(e world.Entity) world.Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.lookup(e)
	if !ok || s.kind != kindRequest {
		return world.Entity{}
	}
	return s.r.handler
}

// Stats is a coarse summary of the world state.
type Stats struct {
	Tick        uint64 `json:"tick"`
	Agents      int    `json:"agents"`
	Employed    int    `json:"employed"`
	Volunteers  int    `json:"volunteers"`
	Parks       int    `json:"parks"`
	Underserved int    `json:"underserved"`
	OpenRequest int    `json:"open_requests"`
}

// Stats summarizes the world. threshold is the service percent below which a
// park is reported as underserved.
func (w *World) Stats(threshold int) Stats {
	w.mu.RLock()
	defer w.mu.RUnlock()
	st := Stats{Tick: w.tick}
	for i := 1; i < len(w.slots); i++ {
		s := &w.slots[i]
		switch s.kind {
		case kindAgent:
			st.Agents++
			if s.a.employed {
				st.Employed++
			}
			if s.a.marker != nil {
				st.Volunteers++
			}
		case kindPark:
			st.Parks++
			p := s.b.park
			if p.capacity > 0 && p.service*100/p.capacity <= threshold {
				st.Underserved++
			}
		case kindRequest:
			if !s.r.completed {
				st.OpenRequest++
			}
		}
	}
	return st
}
