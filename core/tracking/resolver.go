package tracking

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/events"
	"github.com/kilianp07/volunteer/core/journal"
	"github.com/kilianp07/volunteer/core/logger"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/notify"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/internal/eventbus"
)

// Resolution reports how a completion event was applied.
type Resolution struct {
	Event model.CompletionEvent
	// Applied is false when the event did not match a live assignment.
	// Only the marker is cleared in that case.
	Applied bool
	// Failed names the best-effort steps that could not be applied.
	Failed []string
}

// Resolver applies completion events to the world and the assignment store.
// It must run on the same goroutine as the dispatcher.
type Resolver struct {
	world    world.World
	store    *assignment.Store
	notifier notify.Notifier
	logger   logger.Logger
	bus      eventbus.EventBus
	journal  journal.Store
}

// NewResolver creates a resolver. Optional collaborators may be nil.
func NewResolver(w world.World, store *assignment.Store, n notify.Notifier, bus eventbus.EventBus, log logger.Logger) *Resolver {
	return &Resolver{world: w, store: store, notifier: n, bus: bus, logger: logger.OrNop(log)}
}

// SetJournal configures the store receiving completion records.
func (r *Resolver) SetJournal(s journal.Store) { r.journal = s }

// Resolve applies evs in order. Step failures never abort the remaining events.
func (r *Resolver) Resolve(ctx context.Context, evs []model.CompletionEvent) []Resolution {
	out := make([]Resolution, 0, len(evs))
	for _, ev := range evs {
		out = append(out, r.resolve(ctx, ev))
	}
	return out
}

func (r *Resolver) resolve(ctx context.Context, ev model.CompletionEvent) Resolution {
	res := Resolution{Event: ev}
	step := func(name string, err error) {
		if err == nil || errors.Is(err, world.ErrNotFound) && ev.Reason == model.ReasonAgentRemoved {
			return
		}
		res.Failed = append(res.Failed, name)
		stepFailures.WithLabelValues(name).Inc()
		r.logger.Warnf("resolve %s for %v: %s: %v", ev.Outcome, ev.Agent, name, err)
	}

	rec, ok := r.store.Get(ev.Agent)
	switch {
	case ok && rec.Facility == ev.Facility && rec.CreatedTick == ev.AssignedTick:
		r.store.Remove(ev.Agent)
		res.Applied = true
		step("clear_marker", r.world.ClearMarker(ev.Agent))
	case ok:
		// a newer assignment owns the marker now
		r.logger.Debugf("stale %s event for %v ignored", ev.Outcome, ev.Agent)
	default:
		step("clear_marker", r.world.ClearMarker(ev.Agent))
	}

	agentName, facilityName := r.world.Name(ev.Agent), r.world.Name(ev.Facility)
	if res.Applied {
		if ev.Outcome == model.OutcomeArrived {
			r.arrived(ev, step)
			notify.Post(ctx, r.notifier, r.logger, notify.Arrived(ev.Agent, agentName, facilityName))
		} else {
			r.logger.Infof("volunteer %s (%v) abandoned %s (%v): %s", agentName, ev.Agent, facilityName, ev.Facility, ev.Reason)
			r.abandoned(ev, step)
			notify.Post(ctx, r.notifier, r.logger, notify.Abandoned(ev.Agent, agentName, facilityName, ev.Reason.String()))
		}
		r.record(ctx, ev)
	}
	eventbus.Publish(r.bus, events.CompletionEvent{
		Event:        ev,
		Applied:      res.Applied,
		AgentName:    agentName,
		FacilityName: facilityName,
		Failed:       res.Failed,
	})
	return res
}

// arrived restores the facility, closes its requests and sends the agent home.
func (r *Resolver) arrived(ev model.CompletionEvent, step func(string, error)) {
	f, err := r.world.Facility(ev.Facility)
	if err != nil {
		step("facility", err)
	} else {
		step("restore_service", r.world.SetServiceLevel(ev.Facility, f.Capacity))
		step("reset_refuse", r.world.ResetRefuse(ev.Facility))
		if !f.RefuseRequest.IsZero() {
			step("close_refuse_request", ignoreCompleted(r.world.CompleteRequest(f.RefuseRequest, ev.Agent)))
		}
	}
	if !ev.Request.IsZero() {
		step("close_request", ignoreCompleted(r.world.CompleteRequest(ev.Request, ev.Agent)))
	}
	a, err := r.world.Agent(ev.Agent)
	switch {
	case err != nil:
		step("route_home", err)
	case a.Home.IsZero():
		step("route_home", fmt.Errorf("agent has no home: %w", world.ErrNoCapability))
	default:
		step("route_home", r.world.EnqueueTrip(ev.Agent, a.Home, world.PurposeGoingHome))
	}
	r.logger.Infof("volunteer %v restored %v", ev.Agent, ev.Facility)
}

// abandoned withdraws the pending trip and the work-like intent. The
// facility and its request are left untouched.
func (r *Resolver) abandoned(ev model.CompletionEvent, step func(string, error)) {
	if ev.Reason == model.ReasonAgentRemoved {
		return
	}
	step("clear_trips", r.world.ClearTrips(ev.Agent, ev.Facility))
	a, err := r.world.Agent(ev.Agent)
	if err != nil || !a.HasPurpose || a.Purpose != world.PurposeGoingToWork {
		return
	}
	step("clear_purpose", r.world.SetPurpose(ev.Agent, world.PurposeNone))
}

func (r *Resolver) record(ctx context.Context, ev model.CompletionEvent) {
	reason := ev.Reason.String()
	kind := journal.KindAbandoned
	if ev.Outcome == model.OutcomeArrived {
		reason, kind = "", journal.KindArrived
	}
	completionsTotal.WithLabelValues(ev.Outcome.String(), ev.Reason.String()).Inc()
	journal.Append(ctx, r.journal, r.logger, journal.Record{
		Timestamp: ev.Time,
		Tick:      ev.Tick,
		Kind:      kind,
		Agent:     ev.Agent.String(),
		Facility:  ev.Facility.String(),
		Request:   ev.Request.String(),
		Reason:    reason,
	})
}

// ignoreCompleted treats an already closed request as success so replays
// stay idempotent.
func ignoreCompleted(err error) error {
	if errors.Is(err, world.ErrAlreadyCompleted) {
		return nil
	}
	return err
}
