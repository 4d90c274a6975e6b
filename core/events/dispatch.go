package events

import "github.com/kilianp07/volunteer/core/model"

// DispatchEvent is published for each committed assignment.
type DispatchEvent struct {
	PassID       string
	Assignment   model.Assignment
	AgentName    string
	FacilityName string
	// Replaced is true when the agent already held an assignment that was overwritten.
	Replaced bool
}

// CompletionEvent is published once the resolver has processed an outcome.
type CompletionEvent struct {
	Event model.CompletionEvent
	// Applied is false when the event no longer matched a live assignment
	// and only the marker was cleared.
	Applied      bool
	AgentName    string
	FacilityName string
	// Failed lists the best-effort steps that could not be applied.
	Failed []string
}
