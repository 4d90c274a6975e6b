package scenarios

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/volunteer/core/engine"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/infra/logger"
	"github.com/kilianp07/volunteer/infra/metrics"
	"github.com/kilianp07/volunteer/internal/eventbus"
	"github.com/kilianp07/volunteer/simulator"
)

var actions = map[string]func(w *simulator.World, e world.Entity) error{
	"stuck":      func(w *simulator.World, e world.Entity) error { return w.SetStuck(e, true) },
	"employ":     func(w *simulator.World, e world.Entity) error { return w.SetEmployed(e, true) },
	"remove":     func(w *simulator.World, e world.Entity) error { return w.Remove(e) },
	"unroutable": func(w *simulator.World, e world.Entity) error { return w.SetRoutable(e, false) },
}

// Outcome is what a scenario run produced.
type Outcome struct {
	Dispatched int
	Arrived    int
	Abandoned  map[string]int
	Active     int
	// Recorded is the number of completions seen by the metrics sink.
	Recorded float64
}

func RunScenario(t *testing.T, sc *Scenario) Outcome {
	t.Helper()
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	w, names, err := sc.World.Build()
	if err != nil {
		t.Fatalf("build world: %v", err)
	}
	bus := eventbus.NewWithBuffer(64)
	collected := metrics.StartEventCollector(context.Background(), bus, sink)

	eng, err := engine.New(w, engine.Options{
		Dispatch: sc.Tuning.DispatchConfig(),
		Monitor:  sc.Tuning.MonitorConfig(),
		Metrics:  sink,
		Bus:      bus,
		Logger:   logger.NopLogger{},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}

	ctx := context.Background()
	out := Outcome{Abandoned: map[string]int{}}
	for i := 0; i < sc.Ticks; i++ {
		next := w.Tick() + 1
		for _, a := range sc.Actions {
			if a.Tick != next {
				continue
			}
			target, ok := names[a.Target]
			if !ok {
				t.Fatalf("action %s: unknown target %q", a.Kind, a.Target)
			}
			if err := actions[a.Kind](w, target); err != nil {
				t.Fatalf("action %s on %s: %v", a.Kind, a.Target, err)
			}
		}
		now, tick := w.Advance()
		res := eng.Tick(ctx, now, tick)
		if res.Err != nil {
			t.Fatalf("tick %d: %v", tick, res.Err)
		}
		for _, r := range res.Resolutions {
			if !r.Applied {
				continue
			}
			if r.Event.Outcome == model.OutcomeArrived {
				out.Arrived++
			} else {
				out.Abandoned[r.Event.Reason.String()]++
			}
		}
		if res.Pass != nil {
			out.Dispatched += len(res.Pass.Dispatched)
		}
	}
	out.Active = eng.Store().Len()

	bus.Close()
	<-collected
	out.Recorded = sumCounter(t, reg, "volunteer_completion_records_total")
	return out
}

func sumCounter(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
