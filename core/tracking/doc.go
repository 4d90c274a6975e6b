// Package tracking follows dispatched volunteers until their assignment is
// resolved.
//
// The Monitor samples every live assignment on its own cadence and emits at
// most one completion event per assignment into a Queue. It never mutates
// the world. The Resolver drains the queue on the same cycle and applies
// each outcome: it is the only component that removes assignment records
// and clears world markers.
package tracking
