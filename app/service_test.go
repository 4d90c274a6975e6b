package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/volunteer/config"
	"github.com/kilianp07/volunteer/core/factory"
	"github.com/kilianp07/volunteer/core/journal"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Simulation.Scenario = filepath.Join("..", "simulator", "testdata", "small.yaml")
	cfg.Simulation.TickIntervalMS = 5
	cfg.Journal = journal.Config{Backend: "jsonl", Path: filepath.Join(t.TempDir(), "journal.jsonl")}
	cfg.API.Addr = "off"
	cfg.Notify = factory.ModuleConfig{Type: "log"}
	cfg.Logging.Level = "error"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestSimulate(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { require.NoError(t, svc.Close()) }()

	sum, err := svc.Simulate(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 30, sum.Ticks)
	assert.Equal(t, 1, sum.Dispatched)
	assert.Equal(t, 1, sum.Arrived)
	assert.Zero(t, sum.Active)
	assert.Zero(t, sum.Errors)
	assert.Equal(t, 3, sum.Passes, "passes run every 10 simulated minutes")

	recs, err := svc.journal.Query(context.Background(), journal.Query{Kind: journal.KindArrived})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSimulateRejectsZeroTicks(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()
	if _, err := svc.Simulate(context.Background(), 0); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Run(ctx) }()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop")
	}
	assert.Positive(t, svc.World.Tick())
}

func TestNewRejectsUnknownNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify = factory.ModuleConfig{Type: "carrier-pigeon"}
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error")
	}
}
