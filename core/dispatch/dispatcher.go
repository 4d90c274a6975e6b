package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/logger"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/notify"
	"github.com/kilianp07/volunteer/core/world"
)

// ErrFacilityClaimed is returned when a facility already has a live assignment.
var ErrFacilityClaimed = errors.New("facility already has a live assignment")

// Dispatcher commits matcher pairs to the world and the assignment store.
// It is the only component that creates assignment records and must be
// called from a single goroutine.
type Dispatcher struct {
	world    world.World
	store    *assignment.Store
	notifier notify.Notifier
	log      logger.Logger
}

// Commit is the result of a successful dispatch.
type Commit struct {
	Assignment model.Assignment
	// Replaced is true when an existing record for the agent was overwritten.
	Replaced     bool
	AgentName    string
	FacilityName string
}

func NewDispatcher(w world.World, store *assignment.Store, n notify.Notifier, log logger.Logger) *Dispatcher {
	return &Dispatcher{world: w, store: store, notifier: n, log: logger.OrNop(log)}
}

// Commit routes the agent of p to its facility, records the assignment and
// marks the agent. claimed holds the facilities with a live assignment at the
// start of the pass; the committed facility is added to it. When marking
// fails the store is restored and the trip withdrawn.
func (d *Dispatcher) Commit(ctx context.Context, p model.Pair, claimed map[world.Entity]struct{}, now time.Time, tick uint64) (Commit, error) {
	agent, facility := p.Candidate.Agent, p.Facility.Facility
	if _, ok := claimed[facility]; ok || d.store.HasFacility(facility) {
		return Commit{}, fmt.Errorf("facility %v: %w", facility, ErrFacilityClaimed)
	}
	a, err := d.world.Agent(agent)
	if err != nil {
		return Commit{}, fmt.Errorf("agent %v: %w", agent, err)
	}
	origin, _ := world.Resolve(a)

	if err := d.world.EnqueueTrip(agent, facility, world.PurposeGoingToWork); err != nil {
		return Commit{}, fmt.Errorf("route agent %v to %v: %w", agent, facility, err)
	}
	rec := model.Assignment{
		Agent:       agent,
		Facility:    facility,
		Request:     p.Facility.Request,
		Origin:      origin,
		CreatedAt:   now,
		CreatedTick: tick,
	}
	prev, replaced := d.store.Put(rec)
	if err := d.world.SetMarker(agent, rec.Marker()); err != nil {
		if replaced {
			d.store.Put(prev)
		} else {
			d.store.Remove(agent)
		}
		if cerr := d.world.ClearTrips(agent, facility); cerr != nil {
			d.log.Warnf("withdraw trip of %v: %v", agent, cerr)
		}
		return Commit{}, fmt.Errorf("mark agent %v: %w", agent, err)
	}
	if claimed != nil {
		claimed[facility] = struct{}{}
	}
	c := Commit{
		Assignment:   rec,
		Replaced:     replaced,
		AgentName:    d.world.Name(agent),
		FacilityName: d.world.Name(facility),
	}
	d.log.Infof("volunteer %s (%v) dispatched to %s (%v), failures=%d service=%d%%",
		c.AgentName, agent, c.FacilityName, facility, p.Facility.FailureCount, p.Facility.ServicePercent)
	notify.Post(ctx, d.notifier, d.log, notify.Dispatched(agent, c.AgentName, c.FacilityName))
	return c, nil
}
