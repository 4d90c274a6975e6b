package monitoring

import (
	"errors"
	"testing"
	"time"
)

type recordMonitor struct {
	errs []error
	tags map[string]string
}

func (r *recordMonitor) CaptureException(err error, tags map[string]string) {
	r.errs = append(r.errs, err)
	r.tags = tags
}
func (r *recordMonitor) Recover()            {}
func (r *recordMonitor) Flush(time.Duration) {}

func TestGuardRecoversPanic(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})

	err := Guard(map[string]string{"module": "dispatch"}, func() error {
		var m map[string]int
		m["boom"]++
		return nil
	})
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected panic error got %v", err)
	}
	if len(pe.Stack) == 0 {
		t.Fatalf("stack not captured")
	}
	if len(mon.errs) != 1 || mon.tags["module"] != "dispatch" {
		t.Fatalf("panic not reported: %+v", mon)
	}
}

func TestGuardReportsErrors(t *testing.T) {
	mon := &recordMonitor{}
	Init(mon)
	defer Init(NopMonitor{})

	want := errors.New("scan failed")
	if err := Guard(nil, func() error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected %v got %v", want, err)
	}
	if err := Guard(nil, func() error { return nil }); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(mon.errs) != 1 {
		t.Fatalf("expected one report got %d", len(mon.errs))
	}
}
