// Package world defines the boundary between the volunteer engine and the
// host simulation.
//
// The engine never owns world entities. It holds Entity handles, resolves them
// through Query on every use and writes small deltas back through Mutator.
// Any handle may be stale by the time it is resolved; callers treat
// ErrNotFound as "skip and continue" and ErrNoCapability as "state cannot be
// determined".
package world
