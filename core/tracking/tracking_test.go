package tracking

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/simulator"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

type fixture struct {
	w       *simulator.World
	store   *assignment.Store
	queue   *Queue
	home    world.Entity
	shop    world.Entity
	park    world.Entity
	request world.Entity
	agent   world.Entity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ResetMetrics(prometheus.NewRegistry())
	w := simulator.New(simulator.Config{})
	f := &fixture{w: w, store: assignment.NewStore(), queue: &Queue{}}
	f.home = w.AddBuilding("home", r3.Vec{})
	f.shop = w.AddBuilding("shop", r3.Vec{Y: 500})
	f.park = w.AddPark("north-park", r3.Vec{X: 100}, 200, 20)
	var err error
	f.request, err = w.AddRequest(f.park, 3)
	require.NoError(t, err)
	f.agent, err = w.AddAgent(simulator.AgentSpec{Name: "alice", Home: f.home})
	require.NoError(t, err)
	return f
}

// assign reproduces what the dispatcher commits.
func (f *fixture) assign(t *testing.T, tick uint64) model.Assignment {
	t.Helper()
	a, err := f.w.Agent(f.agent)
	require.NoError(t, err)
	origin, _ := world.Resolve(a)
	require.NoError(t, f.w.EnqueueTrip(f.agent, f.park, world.PurposeGoingToWork))
	rec := model.Assignment{Agent: f.agent, Facility: f.park, Request: f.request, Origin: origin, CreatedAt: t0, CreatedTick: tick}
	f.store.Put(rec)
	require.NoError(t, f.w.SetMarker(f.agent, rec.Marker()))
	return rec
}

func (f *fixture) monitor(t *testing.T, cfg Config) *Monitor {
	t.Helper()
	m, err := NewMonitor(cfg, f.w, f.store, f.queue, nil, nil)
	require.NoError(t, err)
	return m
}

func (f *fixture) sample(t *testing.T, m *Monitor, at time.Time) []model.CompletionEvent {
	t.Helper()
	_, err := m.Sample(context.Background(), at, 0)
	require.NoError(t, err)
	return f.queue.Drain(nil)
}

func TestArrivedRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	m := f.monitor(t, Config{})
	r := NewResolver(f.w, f.store, nil, nil, nil)

	f.w.Advance()
	if evs := f.sample(t, m, t0.Add(time.Minute)); len(evs) != 0 {
		t.Fatalf("expected no event mid-transit, got %+v", evs)
	}
	f.w.Advance()
	evs := f.sample(t, m, t0.Add(2*time.Minute))
	require.Len(t, evs, 1)
	assert.Equal(t, model.OutcomeArrived, evs[0].Outcome)
	assert.Equal(t, f.park, evs[0].Location)

	res := r.Resolve(context.Background(), evs)
	require.Len(t, res, 1)
	assert.True(t, res[0].Applied)
	assert.Empty(t, res[0].Failed)

	p, _ := f.w.Facility(f.park)
	assert.Equal(t, 200, p.ServiceLevel)
	assert.Equal(t, 1, f.w.Completions(f.request))
	assert.Equal(t, f.agent, f.w.Handler(f.request))
	assert.Zero(t, f.store.Len())
	_, marked := f.w.Marker(f.agent)
	assert.False(t, marked)
	assert.Equal(t, []world.Entity{f.home}, f.w.Trips(f.agent))
	assert.Equal(t, float64(1), testutil.ToFloat64(completionsTotal.WithLabelValues("arrived", "none")))

	// replaying the event must not close the request or reset the park again
	require.NoError(t, f.w.SetServiceLevel(f.park, 5))
	res = r.Resolve(context.Background(), evs)
	assert.False(t, res[0].Applied)
	assert.Equal(t, 1, f.w.Completions(f.request))
	p, _ = f.w.Facility(f.park)
	assert.Equal(t, 5, p.ServiceLevel)
	assert.Equal(t, float64(1), testutil.ToFloat64(completionsTotal.WithLabelValues("arrived", "none")))
}

func TestArrivedClosesRefuseRequest(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.SetRefuse(f.park, 150))
	refuse, err := f.w.AddRefuseRequest(f.park)
	require.NoError(t, err)
	f.assign(t, 1)
	require.NoError(t, f.w.MoveAgent(f.agent, f.park))

	evs := f.sample(t, f.monitor(t, Config{}), t0)
	require.Len(t, evs, 1)
	NewResolver(f.w, f.store, nil, nil, nil).Resolve(context.Background(), evs)

	p, _ := f.w.Facility(f.park)
	assert.Zero(t, p.Refuse)
	assert.True(t, p.RefuseRequest.IsZero())
	assert.Equal(t, 1, f.w.Completions(refuse))
}

func TestStuckAgentAbandons(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.SetStuck(f.agent, true))
	f.assign(t, 1)
	m := f.monitor(t, Config{StuckTimeoutMinutes: 30})

	if evs := f.sample(t, m, t0.Add(10*time.Minute)); len(evs) != 0 {
		t.Fatalf("stuck timeout not reached yet, got %+v", evs)
	}
	if evs := f.sample(t, m, t0.Add(30*time.Minute)); len(evs) != 0 {
		t.Fatalf("agent must stay longer than the timeout, got %+v", evs)
	}
	evs := f.sample(t, m, t0.Add(31*time.Minute))
	require.Len(t, evs, 1)
	assert.Equal(t, model.OutcomeAbandoned, evs[0].Outcome)
	assert.Equal(t, model.ReasonStuckInBuilding, evs[0].Reason)

	res := NewResolver(f.w, f.store, nil, nil, nil).Resolve(context.Background(), evs)
	assert.True(t, res[0].Applied)
	assert.Empty(t, f.w.Trips(f.agent))
	a, _ := f.w.Agent(f.agent)
	assert.NotEqual(t, world.PurposeGoingToWork, a.Purpose)
	assert.False(t, a.Volunteering)

	p, _ := f.w.Facility(f.park)
	assert.Equal(t, 20, p.ServiceLevel)
	assert.Equal(t, f.request, p.Request)
	assert.Zero(t, f.w.Completions(f.request))
	assert.Zero(t, f.store.Len())
}

func TestGotJobAbandons(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	require.NoError(t, f.w.SetEmployed(f.agent, true))
	evs := f.sample(t, f.monitor(t, Config{}), t0)
	require.Len(t, evs, 1)
	assert.Equal(t, model.ReasonGotJob, evs[0].Reason)
}

func TestReturnedHomeAbandons(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.MoveAgent(f.agent, f.shop))
	f.assign(t, 1)
	m := f.monitor(t, Config{})

	// still at home with the work-like intent: a normal departure window
	require.NoError(t, f.w.MoveAgent(f.agent, f.home))
	assert.Empty(t, f.sample(t, m, t0))

	require.NoError(t, f.w.ForcePurpose(f.agent, world.PurposeGoingHome))
	evs := f.sample(t, m, t0)
	require.Len(t, evs, 1)
	assert.Equal(t, model.ReasonReturnedHome, evs[0].Reason)
}

func TestUnsetPurposeAtHomeWaits(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.w.MoveAgent(f.agent, f.shop))
	f.assign(t, 1)
	require.NoError(t, f.w.MoveAgent(f.agent, f.home))
	require.NoError(t, f.w.ForcePurpose(f.agent, world.PurposeNone))
	assert.Empty(t, f.sample(t, f.monitor(t, Config{}), t0))
}

func TestThirdLocationPolicy(t *testing.T) {
	for _, tc := range []struct {
		policy ThirdLocationPolicy
		events int
	}{
		{PolicyWait, 0},
		{PolicyAbandon, 1},
	} {
		t.Run(string(tc.policy), func(t *testing.T) {
			f := newFixture(t)
			f.assign(t, 1)
			require.NoError(t, f.w.MoveAgent(f.agent, f.shop))
			require.NoError(t, f.w.ForcePurpose(f.agent, world.PurposeShopping))
			evs := f.sample(t, f.monitor(t, Config{ThirdLocation: tc.policy}), t0)
			require.Len(t, evs, tc.events)
			if tc.events == 1 {
				assert.Equal(t, model.ReasonWanderedOff, evs[0].Reason)
			}
		})
	}
}

func TestMidTransitProducesNoEvent(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	require.NoError(t, f.w.PutInTransit(f.agent))
	require.NoError(t, f.w.ForcePurpose(f.agent, world.PurposeGoingHome))
	assert.Empty(t, f.sample(t, f.monitor(t, Config{}), t0.Add(time.Hour)))
}

func TestMarkerLossPrunes(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	require.NoError(t, f.w.ClearMarker(f.agent))
	m := f.monitor(t, Config{})
	res, err := m.Sample(context.Background(), t0, 0)
	require.NoError(t, err)
	assert.Equal(t, SampleResult{Pruned: 1}, res)
	assert.Zero(t, f.queue.Len())
	assert.Zero(t, f.store.Len())
	assert.Equal(t, float64(1), testutil.ToFloat64(prunedTotal))
}

func TestAgentRemoved(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	require.NoError(t, f.w.Remove(f.agent))
	evs := f.sample(t, f.monitor(t, Config{}), t0)
	require.Len(t, evs, 1)
	assert.Equal(t, model.ReasonAgentRemoved, evs[0].Reason)
	res := NewResolver(f.w, f.store, nil, nil, nil).Resolve(context.Background(), evs)
	assert.True(t, res[0].Applied)
	assert.Empty(t, res[0].Failed)
	assert.Zero(t, f.store.Len())
}

func TestFacilityRemoved(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	require.NoError(t, f.w.Remove(f.park))
	evs := f.sample(t, f.monitor(t, Config{}), t0)
	require.Len(t, evs, 1)
	assert.Equal(t, model.ReasonFacilityRemoved, evs[0].Reason)
	res := NewResolver(f.w, f.store, nil, nil, nil).Resolve(context.Background(), evs)
	assert.True(t, res[0].Applied)
	_, marked := f.w.Marker(f.agent)
	assert.False(t, marked)
}

func TestStaleEventKeepsNewerAssignment(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	old := model.CompletionEvent{Agent: f.agent, Facility: f.park, Outcome: model.OutcomeArrived, AssignedTick: 0}
	res := NewResolver(f.w, f.store, nil, nil, nil).Resolve(context.Background(), []model.CompletionEvent{old})
	assert.False(t, res[0].Applied)
	assert.True(t, f.store.Contains(f.agent))
	_, marked := f.w.Marker(f.agent)
	assert.True(t, marked)
	assert.Zero(t, f.w.Completions(f.request))
}

func TestPartialResolutionContinues(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1)
	other, err := f.w.AddAgent(simulator.AgentSpec{Home: f.home})
	require.NoError(t, err)
	park2 := f.w.AddPark("south-park", r3.Vec{Y: 900}, 100, 0)
	rec2 := model.Assignment{Agent: other, Facility: park2, Origin: f.home, CreatedAt: t0, CreatedTick: 1}
	f.store.Put(rec2)
	require.NoError(t, f.w.SetMarker(other, rec2.Marker()))

	evs := []model.CompletionEvent{
		// the request was never recorded and the park was removed
		{Agent: f.agent, Facility: f.park, Request: world.Entity{Index: 999, Version: 3}, Outcome: model.OutcomeArrived, AssignedTick: 1},
		{Agent: other, Facility: park2, Outcome: model.OutcomeArrived, AssignedTick: 1},
	}
	require.NoError(t, f.w.Remove(f.park))
	res := NewResolver(f.w, f.store, nil, nil, nil).Resolve(context.Background(), evs)
	require.Len(t, res, 2)
	assert.ElementsMatch(t, []string{"facility", "close_request"}, res[0].Failed)
	assert.Empty(t, res[1].Failed)
	p, _ := f.w.Facility(park2)
	assert.Equal(t, 100, p.ServiceLevel)
	assert.Equal(t, []world.Entity{f.home}, f.w.Trips(f.agent)[len(f.w.Trips(f.agent))-1:])
}

func TestParallelSampleMatchesSerial(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())
	w := simulator.New(simulator.Config{})
	home := w.AddBuilding("home", r3.Vec{})
	store := assignment.NewStore()
	for i := 0; i < 200; i++ {
		p := w.AddPark("p", r3.Vec{X: float64(i)}, 100, 0)
		a, err := w.AddAgent(simulator.AgentSpec{Home: home})
		require.NoError(t, err)
		rec := model.Assignment{Agent: a, Facility: p, Origin: home, CreatedAt: t0, CreatedTick: uint64(i)}
		store.Put(rec)
		require.NoError(t, w.SetMarker(a, rec.Marker()))
		switch i % 4 {
		case 0:
			require.NoError(t, w.MoveAgent(a, p))
		case 1:
			require.NoError(t, w.SetEmployed(a, true))
		case 2:
			require.NoError(t, w.PutInTransit(a))
		}
	}
	run := func(cfg Config) []model.CompletionEvent {
		q := &Queue{}
		m, err := NewMonitor(cfg, w, store, q, nil, nil)
		require.NoError(t, err)
		_, err = m.Sample(context.Background(), t0.Add(time.Hour), 9)
		require.NoError(t, err)
		return q.Drain(nil)
	}
	serial := run(Config{Workers: 1, PartitionSize: 1 << 20})
	parallel := run(Config{Workers: 8, PartitionSize: 7})
	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Fatalf("parallel sample differs (-serial +parallel):\n%s", diff)
	}
	// arrived, got job and stuck; transit agents produce nothing
	assert.Len(t, serial, 150)
}

func TestConfigValidate(t *testing.T) {
	c := Config{}
	c.SetDefaults()
	require.NoError(t, c.Validate())
	assert.Equal(t, PolicyWait, c.ThirdLocation)
	c.ThirdLocation = "teleport"
	assert.Error(t, c.Validate())
}
