// Package app wires the simulated city, the engine and its side channels
// into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/volunteer/api"
	_ "github.com/kilianp07/volunteer/app/plugins"
	"github.com/kilianp07/volunteer/config"
	"github.com/kilianp07/volunteer/core/engine"
	"github.com/kilianp07/volunteer/core/journal"
	coremetrics "github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/model"
	coremon "github.com/kilianp07/volunteer/core/monitoring"
	"github.com/kilianp07/volunteer/core/notify"
	"github.com/kilianp07/volunteer/infra/logger"
	"github.com/kilianp07/volunteer/infra/metrics"
	"github.com/kilianp07/volunteer/infra/monitoring"
	"github.com/kilianp07/volunteer/internal/eventbus"
	"github.com/kilianp07/volunteer/simulator"
)

// Service owns the simulated world and the engine driving it.
type Service struct {
	World  *simulator.World
	Engine *engine.Engine

	cfg      *config.Config
	bus      *eventbus.Bus
	sink     coremetrics.MetricsSink
	journal  journal.Store
	notifier notify.Notifier
	log      logger.Logger

	stop      context.CancelFunc
	collected <-chan struct{}
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	logg := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	w, _, err := cfg.Simulation.Build()
	if err != nil {
		return nil, err
	}
	n, err := notify.New(cfg.Notify)
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	store, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	bus := eventbus.NewWithBuffer(256)
	eng, err := engine.New(w, engine.Options{
		Dispatch: cfg.Dispatch,
		Monitor:  cfg.Monitor,
		Notifier: n,
		Metrics:  sink,
		Bus:      bus,
		Journal:  store,
		Logger:   logger.New("engine"),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("engine: %w", err)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		World:     w,
		Engine:    eng,
		cfg:       cfg,
		bus:       bus,
		sink:      sink,
		journal:   store,
		notifier:  n,
		log:       logg,
		stop:      stop,
		collected: metrics.StartEventCollector(ctx, bus, sink),
	}, nil
}

// Run starts the side servers and ticks the world until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.Engine.Start(ctx)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.StartPromServer(ctx, addr, logger.New("metrics-http")); err != nil {
				errs <- fmt.Errorf("prom server: %w", err)
			}
		}()
	}
	if s.cfg.API.Enabled() {
		mux := api.NewMux(s.World, s.Engine.Store(), s.journal, s.cfg.API.Token)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := api.Serve(ctx, s.cfg.API.Addr, mux, logger.New("api")); err != nil {
				errs <- fmt.Errorf("api server: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Engine.Run(ctx, s.World, s.cfg.Simulation.TickInterval())
	}()

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
		s.log.Errorf("%v", err)
		cancel()
	}
	<-done
	wg.Wait()
	return err
}

// Summary aggregates the outcome of a headless simulation.
type Summary struct {
	Ticks      int                `json:"ticks"`
	Passes     int                `json:"passes"`
	Dispatched int                `json:"dispatched"`
	Arrived    int                `json:"arrived"`
	Abandoned  map[string]int     `json:"abandoned"`
	Active     int                `json:"active"`
	Errors     int                `json:"errors"`
	Elapsed    time.Duration      `json:"elapsed"`
	City       simulator.Stats    `json:"city"`
	Last       *engine.TickResult `json:"-"`
}

// Simulate advances the world ticks times as fast as possible.
func (s *Service) Simulate(ctx context.Context, ticks int) (Summary, error) {
	if ticks <= 0 {
		return Summary{}, errors.New("ticks must be positive")
	}
	start := time.Now()
	s.Engine.Start(ctx)
	sum := Summary{Abandoned: map[string]int{}}
	for i := 0; i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		now, tick := s.World.Advance()
		res := s.Engine.Tick(ctx, now, tick)
		sum.Ticks++
		if res.Err != nil {
			sum.Errors++
		}
		for _, r := range res.Resolutions {
			if !r.Applied {
				continue
			}
			if r.Event.Outcome == model.OutcomeArrived {
				sum.Arrived++
			} else {
				sum.Abandoned[r.Event.Reason.String()]++
			}
		}
		if res.Pass != nil {
			sum.Passes++
			sum.Dispatched += len(res.Pass.Dispatched)
			if res.Pass.Err != nil {
				sum.Errors++
			}
		}
		sum.Last = &res
	}
	sum.Active = s.Engine.Store().Len()
	sum.Elapsed = time.Since(start)
	sum.City = s.World.Stats(s.cfg.Dispatch.Threshold())
	return sum, nil
}

// Close releases resources held by the service. Completion events still
// buffered on the bus are recorded before the sinks are closed.
func (s *Service) Close() error {
	s.bus.Close()
	<-s.collected
	s.stop()
	if d := s.bus.Dropped(); d > 0 {
		s.log.Warnf("event bus dropped %d events", d)
	}
	var errs []error
	if c, ok := s.sink.(interface{ Close() }); ok {
		c.Close()
	}
	if err := s.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("journal: %w", err))
	}
	if d, ok := s.notifier.(interface{ Disconnect() }); ok {
		d.Disconnect()
	}
	coremon.Flush(2 * time.Second)
	return errors.Join(errs...)
}
