// Package events defines the volunteer engine events emitted on the event bus.
//
// Available event types:
//   - PassEvent: summary of a dispatch pass
//   - DispatchEvent: a volunteer was sent to a facility
//   - CompletionEvent: an assignment was resolved as arrived or abandoned
package events
