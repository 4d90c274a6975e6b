// Package scheduler decides when periodic engine stages run. Cadences are
// measured in simulated time, so the dispatch and monitor intervals stay
// correct whatever the wall clock tick rate is.
package scheduler
