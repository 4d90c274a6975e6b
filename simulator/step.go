package simulator

import (
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/world"
)

// Now returns the simulated time.
func (w *World) Now() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.now
}

// Tick returns the number of ticks advanced so far.
func (w *World) Tick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.tick
}

// Advance runs one tick of MinutesPerTick simulated minutes and returns the
// new time and tick number.
func (w *World) Advance() (time.Time, uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := 0; i < w.cfg.MinutesPerTick; i++ {
		w.minuteLocked()
		w.now = w.now.Add(time.Minute)
	}
	w.tick++
	return w.now, w.tick
}

func (w *World) minuteLocked() {
	for i := 1; i < len(w.slots); i++ {
		s := &w.slots[i]
		switch s.kind {
		case kindAgent:
			w.churnLocked(s.a)
			w.moveLocked(s.a)
		case kindPark:
			w.decayLocked(world.Entity{Index: uint32(i), Version: s.version}, s.b.park)
		case kindRequest:
			if !s.r.completed && s.r.kind == RequestMaintenance && w.roll(w.cfg.FailureRate) {
				s.r.failures++
			}
		}
	}
}

func (w *World) roll(p float64) bool {
	return p > 0 && w.rng.Float64() < p
}

func (w *World) churnLocked(a *agent) {
	if !a.household || a.child || a.health == world.HealthDead {
		return
	}
	if a.employed {
		if w.roll(w.cfg.JobLossRate) {
			a.employed = false
		}
		return
	}
	if w.roll(w.cfg.JobRate) {
		a.employed = true
		return
	}
	if a.marker == nil && len(a.trips) == 0 && a.routable && a.building == a.home && !a.home.IsZero() && w.roll(w.cfg.LeisureRate) {
		if dest, ok := w.randomBuildingLocked(a.home); ok {
			a.trips = append(a.trips, trip{target: dest, purpose: world.PurposeLeisure}, trip{target: a.home, purpose: world.PurposeGoingHome})
			a.purpose = world.PurposeLeisure
			a.noPurpose = false
			a.progress = 0
		}
	}
}

func (w *World) randomBuildingLocked(except world.Entity) (world.Entity, bool) {
	n := len(w.slots) - 1
	if n <= 0 {
		return world.Entity{}, false
	}
	start := 1 + w.rng.Intn(n)
	for k := 0; k < n; k++ {
		i := 1 + (start-1+k)%n
		s := &w.slots[i]
		if s.kind != kindBuilding && s.kind != kindPark {
			continue
		}
		e := world.Entity{Index: uint32(i), Version: s.version}
		if e != except {
			return e, true
		}
	}
	return world.Entity{}, false
}

func (w *World) moveLocked(a *agent) {
	if len(a.trips) == 0 || a.stuck {
		return
	}
	t := a.trips[0]
	ts, ok := w.lookup(t.target)
	if !ok {
		a.trips = a.trips[1:]
		a.progress = 0
		return
	}
	dest := ts.b.pos
	if a.building == t.target {
		w.arriveLocked(a, t.target, dest)
		return
	}
	if !a.building.IsZero() {
		if bs, ok := w.lookup(a.building); ok {
			a.from = bs.b.pos
		}
		a.building = world.Entity{}
		a.vehicle = a.car
		a.progress = 0
	}
	speed := w.cfg.WalkSpeed
	if !a.car.IsZero() {
		speed = w.cfg.DriveSpeed
	}
	a.progress += speed
	dist := r3.Norm(r3.Sub(dest, a.from))
	if a.progress >= dist {
		w.arriveLocked(a, t.target, dest)
		return
	}
	if cs, ok := w.lookup(a.car); ok {
		cs.v.pos = r3.Add(a.from, r3.Scale(a.progress/dist, r3.Sub(dest, a.from)))
	}
}

func (w *World) arriveLocked(a *agent, target world.Entity, pos r3.Vec) {
	a.building = target
	a.vehicle = world.Entity{}
	a.progress = 0
	a.from = pos
	if cs, ok := w.lookup(a.car); ok {
		cs.v.pos = pos
	}
	a.trips = a.trips[1:]
	if len(a.trips) > 0 {
		a.purpose = a.trips[0].purpose
	}
}

func (w *World) decayLocked(id world.Entity, p *park) {
	if p.capacity <= 0 {
		return
	}
	p.service -= w.cfg.DecayPerMinute
	if p.service < 0 {
		p.service = 0
	}
	if p.request.IsZero() && p.service*100/p.capacity <= w.cfg.RequestThresholdPercent {
		w.openRequestLocked(id, p, RequestMaintenance, 0)
	}
	p.refuse += w.cfg.RefusePerMinute
	if p.refuseRequest.IsZero() && w.cfg.RefusePerMinute > 0 && p.refuse >= w.cfg.RefuseThreshold {
		w.openRequestLocked(id, p, RequestRefuse, 0)
	}
}
