package scheduler

import (
	"errors"
	"time"
)

// ErrInterval is returned for non-positive intervals.
var ErrInterval = errors.New("interval must be positive")

// Cadence fires once per Interval of simulated time. The first call to Due
// always fires.
type Cadence struct {
	Interval time.Duration
	next     time.Time
	started  bool
}

// Every returns a cadence firing every minutes simulated minutes.
func Every(minutes int) (*Cadence, error) {
	if minutes <= 0 {
		return nil, ErrInterval
	}
	return &Cadence{Interval: time.Duration(minutes) * time.Minute}, nil
}

// Due reports whether the stage should run at now and, if so, schedules the
// next run. Missed slots are not replayed. A clock that moves backwards
// restarts the cadence.
func (c *Cadence) Due(now time.Time) bool {
	if c.started && now.Before(c.next) && !now.Before(c.next.Add(-c.Interval)) {
		return false
	}
	c.started = true
	c.next = now.Add(c.Interval)
	return true
}

// Next returns the earliest time the cadence fires again. It is zero before
// the first run.
func (c *Cadence) Next() time.Time { return c.next }

// Reset makes the next call to Due fire.
func (c *Cadence) Reset() {
	c.started = false
	c.next = time.Time{}
}
