package scheduler

import (
	"errors"
	"testing"
	"time"
)

var start = time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC)

func TestCadenceFiresOnFirstTickThenEveryInterval(t *testing.T) {
	c, err := Every(10)
	if err != nil {
		t.Fatalf("every: %v", err)
	}
	var fired []int
	for m := 0; m < 35; m++ {
		if c.Due(start.Add(time.Duration(m) * time.Minute)) {
			fired = append(fired, m)
		}
	}
	want := []int{0, 10, 20, 30}
	if len(fired) != len(want) {
		t.Fatalf("expected %v got %v", want, fired)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("expected %v got %v", want, fired)
		}
	}
	if !c.Next().Equal(start.Add(40 * time.Minute)) {
		t.Fatalf("unexpected next %v", c.Next())
	}
}

func TestCadenceCoarseTicksSkipMissedSlots(t *testing.T) {
	c, _ := Every(1)
	count := 0
	for m := 0; m < 30; m += 5 {
		if c.Due(start.Add(time.Duration(m) * time.Minute)) {
			count++
		}
	}
	if count != 6 {
		t.Fatalf("expected one run per coarse tick, got %d", count)
	}
}

func TestCadenceClockRewind(t *testing.T) {
	c, _ := Every(10)
	c.Due(start.Add(time.Hour))
	if !c.Due(start) {
		t.Fatalf("expected rewind to restart the cadence")
	}
	c.Reset()
	if !c.Due(start.Add(time.Minute)) {
		t.Fatalf("expected reset cadence to fire")
	}
}

func TestEveryRejectsZero(t *testing.T) {
	if _, err := Every(0); !errors.Is(err, ErrInterval) {
		t.Fatalf("expected ErrInterval got %v", err)
	}
}
