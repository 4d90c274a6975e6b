package tracking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/logger"
	"github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
)

// SampleResult summarizes one monitor cycle.
type SampleResult struct {
	Tracked int
	Pruned  int
	Events  int
}

// Monitor classifies live assignments. Sample must not be called concurrently.
type Monitor struct {
	cfg     Config
	world   world.Query
	store   *assignment.Store
	queue   *Queue
	logger  logger.Logger
	metrics metrics.MonitorRecorder
	bufs    [][]model.CompletionEvent
}

// NewMonitor creates a monitor pushing events to q. sink may be nil.
func NewMonitor(cfg Config, w world.Query, store *assignment.Store, q *Queue, sink metrics.MonitorRecorder, log logger.Logger) (*Monitor, error) {
	if w == nil || store == nil || q == nil {
		return nil, fmt.Errorf("tracking: nil parameter provided to NewMonitor")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracking: %w", err)
	}
	return &Monitor{cfg: cfg, world: w, store: store, queue: q, metrics: sink, logger: logger.OrNop(log)}, nil
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config { return m.cfg }

// Sample prunes records whose agent no longer carries a marker, then
// classifies every remaining record in parallel and queues the resulting
// events in store order.
func (m *Monitor) Sample(ctx context.Context, now time.Time, tick uint64) (SampleResult, error) {
	var res SampleResult
	dropped := m.store.Prune(func(a model.Assignment) bool {
		if !m.world.Exists(a.Agent) {
			// classified as removed below
			return true
		}
		_, marked := m.world.Marker(a.Agent)
		return marked
	})
	for _, a := range dropped {
		m.logger.Infof("stop tracking %v: marker cleared externally", a.Agent)
	}
	res.Pruned = len(dropped)
	prunedTotal.Add(float64(len(dropped)))

	recs := m.store.List()
	res.Tracked = len(recs)
	trackedGauge.Set(float64(len(recs)))

	n := (len(recs) + m.cfg.PartitionSize - 1) / m.cfg.PartitionSize
	for len(m.bufs) < n {
		m.bufs = append(m.bufs, nil)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i := 0; i < n; i++ {
		lo := i * m.cfg.PartitionSize
		part := recs[lo:min(lo+m.cfg.PartitionSize, len(recs))]
		idx := i
		g.Go(func() error {
			buf := m.bufs[idx][:0]
			for _, rec := range part {
				if err := gctx.Err(); err != nil {
					return err
				}
				if ev, ok := m.classify(rec, now, tick); ok {
					buf = append(buf, ev)
				}
			}
			m.bufs[idx] = buf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, fmt.Errorf("sample assignments: %w", err)
	}
	for _, b := range m.bufs[:n] {
		m.queue.Push(b...)
		res.Events += len(b)
	}

	if m.metrics != nil {
		if err := m.metrics.RecordMonitor(metrics.MonitorRecord{
			Tick: tick, Time: now, Tracked: res.Tracked, Pruned: res.Pruned, Events: res.Events,
		}); err != nil {
			m.logger.Errorf("monitor metrics error: %v", err)
		}
	}
	return res, nil
}

// classify applies the transition rules in priority order. It reads the
// world only.
func (m *Monitor) classify(rec model.Assignment, now time.Time, tick uint64) (model.CompletionEvent, bool) {
	ev := model.CompletionEvent{
		Agent:        rec.Agent,
		Facility:     rec.Facility,
		Request:      rec.Request,
		Outcome:      model.OutcomeAbandoned,
		Tick:         tick,
		Time:         now,
		AssignedTick: rec.CreatedTick,
	}
	a, err := m.world.Agent(rec.Agent)
	if errors.Is(err, world.ErrNotFound) {
		ev.Reason = model.ReasonAgentRemoved
		return ev, true
	}
	if err != nil {
		return ev, false
	}
	if !m.world.Exists(rec.Facility) {
		ev.Reason = model.ReasonFacilityRemoved
		return ev, true
	}
	loc, resolved := world.Resolve(a)
	ev.Location = loc
	switch {
	case resolved && loc == rec.Facility:
		ev.Outcome = model.OutcomeArrived
	case a.Employed || a.Health == world.HealthDead:
		ev.Reason = model.ReasonGotJob
	case !resolved:
		return ev, false
	case loc == a.Home && intentChanged(a):
		ev.Reason = model.ReasonReturnedHome
	case loc == rec.Origin && now.Sub(rec.CreatedAt) > time.Duration(m.cfg.StuckTimeoutMinutes)*time.Minute:
		ev.Reason = model.ReasonStuckInBuilding
	case m.cfg.ThirdLocation == PolicyAbandon && !a.Building.IsZero() &&
		loc != rec.Origin && loc != a.Home && intentChanged(a):
		ev.Reason = model.ReasonWanderedOff
	default:
		return ev, false
	}
	return ev, true
}

// intentChanged reports whether the agent's purpose is known, set and no
// longer work-like. A missing purpose component means the state cannot be
// determined.
func intentChanged(a world.Agent) bool {
	return a.HasPurpose && a.Purpose != world.PurposeNone && a.Purpose != world.PurposeGoingToWork
}
