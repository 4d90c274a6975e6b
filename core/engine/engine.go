// Package engine drives the volunteer dispatch stages from a single tick.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/dispatch"
	"github.com/kilianp07/volunteer/core/journal"
	"github.com/kilianp07/volunteer/core/logger"
	"github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/monitoring"
	"github.com/kilianp07/volunteer/core/notify"
	"github.com/kilianp07/volunteer/core/scheduler"
	"github.com/kilianp07/volunteer/core/tracking"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/internal/eventbus"
)

// Options bundles the engine collaborators. Every field except the configs
// may be left nil.
type Options struct {
	Dispatch dispatch.Config
	Monitor  tracking.Config
	Notifier notify.Notifier
	// Metrics receives pass records, and monitor records when it implements
	// metrics.MonitorRecorder.
	Metrics metrics.MetricsSink
	Bus     eventbus.EventBus
	Journal journal.Store
	Logger  logger.Logger
}

// TickSource advances the host world and reports the resulting simulated
// time and tick number.
type TickSource interface {
	Advance() (time.Time, uint64)
}

// TickResult reports what ran during a tick.
type TickResult struct {
	Tick        uint64
	Monitored   bool
	Sample      tracking.SampleResult
	Resolutions []tracking.Resolution
	// Pass is nil when the dispatch cadence was not due.
	Pass *dispatch.PassResult
	// Err is set when the monitor cycle was abandoned.
	Err error
}

// Engine owns the assignment store and runs monitor, resolver and dispatch
// passes serially.
type Engine struct {
	world    world.World
	store    *assignment.Store
	manager  *dispatch.Manager
	monitor  *tracking.Monitor
	queue    *tracking.Queue
	resolver *tracking.Resolver
	logger   logger.Logger

	dispatchEvery *scheduler.Cadence
	monitorEvery  *scheduler.Cadence
	drain         []model.CompletionEvent
	mu            sync.Mutex
}

// New wires the engine stages around w.
func New(w world.World, opts Options) (*Engine, error) {
	if w == nil {
		return nil, fmt.Errorf("engine: nil world")
	}
	log := logger.OrNop(opts.Logger)
	store := assignment.NewStore()
	mgr, err := dispatch.NewManager(opts.Dispatch, w, store, opts.Notifier, opts.Metrics, opts.Bus, log)
	if err != nil {
		return nil, err
	}
	mgr.SetJournal(opts.Journal)
	var rec metrics.MonitorRecorder
	if mr, ok := opts.Metrics.(metrics.MonitorRecorder); ok {
		rec = mr
	}
	queue := &tracking.Queue{}
	mon, err := tracking.NewMonitor(opts.Monitor, w, store, queue, rec, log)
	if err != nil {
		return nil, err
	}
	res := tracking.NewResolver(w, store, opts.Notifier, opts.Bus, log)
	res.SetJournal(opts.Journal)

	de, err := scheduler.Every(mgr.Config().IntervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("dispatch cadence: %w", err)
	}
	me, err := scheduler.Every(mon.Config().IntervalMinutes)
	if err != nil {
		return nil, fmt.Errorf("monitor cadence: %w", err)
	}
	return &Engine{
		world:         w,
		store:         store,
		manager:       mgr,
		monitor:       mon,
		queue:         queue,
		resolver:      res,
		logger:        log,
		dispatchEvery: de,
		monitorEvery:  me,
	}, nil
}

// Store returns the assignment store shared by every stage.
func (e *Engine) Store() *assignment.Store { return e.store }

// Manager returns the dispatch manager.
func (e *Engine) Manager() *dispatch.Manager { return e.manager }

// Start rebuilds the assignment store from the markers found in the world.
// When several agents claim the same facility the oldest keeps it and the
// others lose their marker.
func (e *Engine) Start(ctx context.Context) assignment.RebuildResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := e.store.Rebuild(e.world)
	for _, agent := range res.Duplicates {
		if err := e.world.ClearMarker(agent); err != nil {
			e.logger.Warnf("clear duplicate marker on %v: %v", agent, err)
		}
	}
	e.logger.Infof("restored %d assignments from world markers, dropped %d duplicates", res.Restored, len(res.Duplicates))
	return res
}

// Tick runs the stages that are due at now: the monitor cycle and its
// resolution first, then the dispatch pass, so facilities released this
// tick can be served again.
func (e *Engine) Tick(ctx context.Context, now time.Time, tick uint64) TickResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	res := TickResult{Tick: tick}
	if e.monitorEvery.Due(now) {
		res.Monitored = true
		tags := map[string]string{"module": "tracking", "tick": fmt.Sprint(tick)}
		res.Err = monitoring.Guard(tags, func() error {
			s, err := e.monitor.Sample(ctx, now, tick)
			res.Sample = s
			if err != nil {
				return err
			}
			e.drain = e.queue.Drain(e.drain[:0])
			res.Resolutions = e.resolver.Resolve(ctx, e.drain)
			return nil
		})
		if res.Err != nil {
			e.logger.Errorf("monitor cycle at tick %d abandoned: %v", tick, res.Err)
		}
	}
	if e.dispatchEvery.Due(now) {
		p := e.manager.RunPass(ctx, now, tick)
		res.Pass = &p
	}
	return res
}

// Run advances src every interval and ticks the engine until ctx is done.
func (e *Engine) Run(ctx context.Context, src TickSource, interval time.Duration) {
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			now, tick := src.Advance()
			e.Tick(ctx, now, tick)
		}
	}
}
