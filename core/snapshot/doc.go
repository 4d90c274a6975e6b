// Package snapshot extracts the per-pass candidate and needy-facility lists
// from the world.
//
// Handle lists are split into contiguous partitions scanned by a bounded
// worker pool. Each partition writes into its own buffer and buffers are
// merged in partition order, so the result equals a serial scan truncated at
// the configured caps.
package snapshot
