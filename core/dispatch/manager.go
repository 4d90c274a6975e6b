package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/events"
	"github.com/kilianp07/volunteer/core/journal"
	"github.com/kilianp07/volunteer/core/logger"
	"github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/monitoring"
	"github.com/kilianp07/volunteer/core/notify"
	"github.com/kilianp07/volunteer/core/snapshot"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/internal/eventbus"
)

// PassResult summarizes one dispatch pass.
type PassResult struct {
	PassID     string
	Tick       uint64
	Time       time.Time
	Candidates int
	Needy      int
	Matched    int
	Dispatched []model.Assignment
	// Skipped is true when the snapshot had no candidate or no needy facility.
	Skipped  bool
	Duration time.Duration
	// Err is set when the pass was abandoned. The store keeps every
	// assignment committed before the failure.
	Err error
}

// Manager runs dispatch passes: snapshot, match, then serial commit.
type Manager struct {
	cfg        Config
	world      world.World
	store      *assignment.Store
	reader     *snapshot.Reader
	matcher    Matcher
	dispatcher *Dispatcher
	logger     logger.Logger
	metrics    metrics.MetricsSink
	bus        eventbus.EventBus
	journal    journal.Store
	last       PassResult
	mu         sync.Mutex
}

// NewManager creates a new manager. Optional collaborators may be nil.
func NewManager(cfg Config, w world.World, store *assignment.Store, n notify.Notifier, sink metrics.MetricsSink, bus eventbus.EventBus, log logger.Logger) (*Manager, error) {
	if w == nil || store == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewManager")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	log = logger.OrNop(log)
	return &Manager{
		cfg:        cfg,
		world:      w,
		store:      store,
		reader:     snapshot.NewReader(cfg.Limits()),
		matcher:    Matcher{MaxCandidatesToCheck: cfg.MaxCandidatesToCheck},
		dispatcher: NewDispatcher(w, store, n, log),
		logger:     log,
		metrics:    sink,
		bus:        bus,
	}, nil
}

// SetJournal configures the store receiving pass and dispatch records.
func (m *Manager) SetJournal(s journal.Store) {
	m.mu.Lock()
	m.journal = s
	m.mu.Unlock()
}

// Config returns the effective configuration.
func (m *Manager) Config() Config { return m.cfg }

// Last returns the result of the most recent pass.
func (m *Manager) Last() PassResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// RunPass executes one dispatch pass. Panics and errors are recovered here,
// reported to monitoring and returned in the result; the pass is abandoned
// for this tick only.
func (m *Manager) RunPass(ctx context.Context, now time.Time, tick uint64) PassResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	res := PassResult{PassID: uuid.NewString(), Tick: tick, Time: now}
	tags := map[string]string{"module": "dispatch", "pass_id": res.PassID, "tick": fmt.Sprint(tick)}
	if err := monitoring.Guard(tags, func() error { return m.pass(ctx, &res) }); err != nil {
		res.Err = err
		m.logger.Errorf("dispatch pass %s at tick %d abandoned after %d commits: %v", res.PassID, tick, len(res.Dispatched), err)
	}
	res.Duration = time.Since(start)
	m.record(ctx, res)
	m.last = res
	return res
}

func (m *Manager) pass(ctx context.Context, res *PassResult) error {
	claimed := m.store.ClaimedFacilities()
	snap, err := m.reader.Scan(ctx, m.world, m.store.Contains)
	if err != nil {
		return err
	}
	res.Candidates, res.Needy = len(snap.Candidates), len(snap.Facilities)
	if snap.Empty() {
		res.Skipped = true
		m.logger.Debugf("dispatch pass %s skipped: %d candidates, %d needy facilities", res.PassID, res.Candidates, res.Needy)
		return nil
	}
	pairs := m.matcher.Match(snap.Candidates, snap.Facilities, claimed, nil, m.cfg.MaxVolunteersPerDispatch, m.routable)
	res.Matched = len(pairs)
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := m.dispatcher.Commit(ctx, p, claimed, res.Time, res.Tick)
		if err != nil {
			commitFailures.WithLabelValues(failureReason(err)).Inc()
			m.logger.Warnf("dispatch pass %s: skip pair: %v", res.PassID, err)
			continue
		}
		res.Dispatched = append(res.Dispatched, c.Assignment)
		volunteersDispatched.Inc()
		eventbus.Publish(m.bus, events.DispatchEvent{
			PassID:       res.PassID,
			Assignment:   c.Assignment,
			AgentName:    c.AgentName,
			FacilityName: c.FacilityName,
			Replaced:     c.Replaced,
		})
		journal.Append(ctx, m.journal, m.logger, journal.Record{
			Timestamp: res.Time,
			Tick:      res.Tick,
			Kind:      journal.KindDispatch,
			PassID:    res.PassID,
			Agent:     c.Assignment.Agent.String(),
			Facility:  c.Assignment.Facility.String(),
			Request:   c.Assignment.Request.String(),
		})
	}
	return nil
}

// routable revalidates a snapshot candidate against the live world.
func (m *Manager) routable(e world.Entity) bool {
	a, err := m.world.Agent(e)
	return err == nil && a.Routable
}

func (m *Manager) record(ctx context.Context, res PassResult) {
	passDuration.Observe(res.Duration.Seconds())
	candidatesGauge.Set(float64(res.Candidates))
	needyGauge.Set(float64(res.Needy))
	passesTotal.WithLabelValues(passLabel(res)).Inc()

	rec := metrics.PassRecord{
		PassID:     res.PassID,
		Tick:       res.Tick,
		Time:       res.Time,
		Candidates: res.Candidates,
		Needy:      res.Needy,
		Matched:    res.Matched,
		Dispatched: len(res.Dispatched),
		Duration:   res.Duration,
	}
	if res.Err != nil {
		rec.Err = res.Err.Error()
	}
	if err := m.metrics.RecordPass(rec); err != nil {
		m.logger.Errorf("pass metrics error: %v", err)
	}
	eventbus.Publish(m.bus, events.PassEvent{
		PassID:     res.PassID,
		Tick:       res.Tick,
		Time:       res.Time,
		Candidates: res.Candidates,
		Needy:      res.Needy,
		Dispatched: len(res.Dispatched),
		Err:        res.Err,
	})
	if res.Skipped {
		return
	}
	journal.Append(ctx, m.journal, m.logger, journal.Record{
		Timestamp: res.Time,
		Tick:      res.Tick,
		Kind:      journal.KindPass,
		PassID:    res.PassID,
		Count:     len(res.Dispatched),
		Error:     rec.Err,
	})
}

func passLabel(res PassResult) string {
	switch {
	case res.Err != nil:
		return "error"
	case res.Skipped:
		return "skipped"
	case len(res.Dispatched) == 0:
		return "idle"
	default:
		return "dispatched"
	}
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrFacilityClaimed):
		return "claimed"
	case errors.Is(err, world.ErrNotFound):
		return "stale"
	case errors.Is(err, world.ErrNoCapability):
		return "capability"
	default:
		return "other"
	}
}
