package metrics

import (
	"context"

	"github.com/kilianp07/volunteer/core/events"
	coremetrics "github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records completion
// metrics for applied resolutions. It stops when the context is canceled or
// the bus is closed. The returned channel is closed once it has stopped.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	r, ok := sink.(coremetrics.CompletionRecorder)
	if bus == nil || !ok {
		close(done)
		return done
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if e, ok := ev.(events.CompletionEvent); ok && e.Applied {
					_ = r.RecordCompletion(completionRecord(e.Event))
				}
			}
		}
	}()
	return done
}

func completionRecord(ev model.CompletionEvent) coremetrics.CompletionRecord {
	rec := coremetrics.CompletionRecord{
		Agent:    ev.Agent.String(),
		Facility: ev.Facility.String(),
		Outcome:  ev.Outcome.String(),
		Tick:     ev.Tick,
		Time:     ev.Time,
	}
	if ev.Outcome == model.OutcomeAbandoned {
		rec.Reason = ev.Reason.String()
	}
	if ev.Tick > ev.AssignedTick {
		rec.TravelTicks = ev.Tick - ev.AssignedTick
	}
	return rec
}
