//go:build !no_containers

package e2e

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/volunteer/app"
	"github.com/kilianp07/volunteer/config"
	"github.com/kilianp07/volunteer/core/factory"
	"github.com/kilianp07/volunteer/internal/testutil"
)

const (
	influxOrg    = "e2e_org"
	influxBucket = "e2e_bucket"
	influxToken  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container already set up with the test
// organisation, bucket and admin token.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// collect subscribes to every announcement topic and counts messages per topic.
func collect(t *testing.T, broker, prefix string) (func() map[string]int, func()) {
	t.Helper()
	var mu sync.Mutex
	counts := map[string]int{}
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-listener")
	cli := paho.NewClient(opts)
	if tok := cli.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("listener connect: %v", tok.Error())
	}
	tok := cli.Subscribe(prefix+"/#", 1, func(_ paho.Client, m paho.Message) {
		mu.Lock()
		counts[m.Topic()]++
		mu.Unlock()
	})
	if tok.Wait() && tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}
	snapshot := func() map[string]int {
		mu.Lock()
		defer mu.Unlock()
		out := make(map[string]int, len(counts))
		for k, v := range counts {
			out[k] = v
		}
		return out
	}
	return snapshot, func() { cli.Disconnect(250) }
}

// Test_E2E_SimulatedCity runs the service headless against real InfluxDB
// and Mosquitto instances and checks that pass and completion records and
// announcements reached them.
func Test_E2E_SimulatedCity(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	start := time.Now()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	broker, cleanup, err := testutil.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	defer cleanup()

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	if err := cli.EnsureBucket(ctx); err != nil {
		t.Fatalf("setup bucket: %v", err)
	}

	const prefix = "e2e/volunteers"
	received, stopListening := collect(t, broker, prefix)
	defer stopListening()

	cfg := &config.Config{}
	cfg.Simulation.Scenario = filepath.Join("..", "simulator", "testdata", "small.yaml")
	cfg.API.Addr = "off"
	cfg.Journal.Backend = "none"
	cfg.Logging.Level = "warn"
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "influx", Conf: map[string]any{
		"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket,
	}}}
	cfg.Notify = factory.ModuleConfig{Type: "mqtt", Conf: map[string]any{
		"broker": broker, "topic_prefix": prefix, "qos": 1,
	}}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	sum, err := svc.Simulate(ctx, 15)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if sum.Dispatched != 1 || sum.Arrived != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	passes, err := cli.CountPoints(ctx, "dispatch_pass", "", "")
	if err != nil {
		t.Fatalf("query passes: %v", err)
	}
	if passes != sum.Passes {
		t.Fatalf("expected %d pass points got %d", sum.Passes, passes)
	}
	arrived, err := cli.CountPoints(ctx, "assignment_resolved", "outcome", "arrived")
	if err != nil {
		t.Fatalf("query completions: %v", err)
	}
	if arrived != 1 {
		t.Fatalf("expected 1 arrival point got %d", arrived)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got := received()
		if got[prefix+"/dispatch"] == 1 && got[prefix+"/arrived"] == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("announcements not received: %v", got)
		}
		time.Sleep(50 * time.Millisecond)
	}

	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: t.Name(), Time: time.Since(start).Seconds()}}}
	if err := writeJUnit(filepath.Join(t.TempDir(), "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
