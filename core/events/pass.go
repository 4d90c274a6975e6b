package events

import "time"

// PassEvent is published at the end of every dispatch pass, including
// skipped and abandoned ones.
type PassEvent struct {
	PassID     string
	Tick       uint64
	Time       time.Time
	Candidates int
	Needy      int
	Dispatched int
	Err        error
}
