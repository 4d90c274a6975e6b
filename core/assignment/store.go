package assignment

import (
	"sort"
	"sync"

	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
)

// Store holds one assignment record per dispatched agent. Facility membership
// is answered by scanning the live set, which stays small.
type Store struct {
	mu   sync.RWMutex
	data map[world.Entity]model.Assignment
}

func NewStore() *Store {
	return &Store{data: map[world.Entity]model.Assignment{}}
}

// Put inserts or overwrites the record for a.Agent and returns the record it replaced.
func (s *Store) Put(a model.Assignment) (model.Assignment, bool) {
	s.mu.Lock()
	prev, ok := s.data[a.Agent]
	s.data[a.Agent] = a
	s.mu.Unlock()
	return prev, ok
}

// Remove deletes the record for agent and returns it.
func (s *Store) Remove(agent world.Entity) (model.Assignment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.data[agent]
	if ok {
		delete(s.data, agent)
	}
	return a, ok
}

func (s *Store) Get(agent world.Entity) (model.Assignment, bool) {
	s.mu.RLock()
	a, ok := s.data[agent]
	s.mu.RUnlock()
	return a, ok
}

// Contains reports whether agent holds a live assignment.
func (s *Store) Contains(agent world.Entity) bool {
	_, ok := s.Get(agent)
	return ok
}

// HasFacility reports whether any live assignment targets facility.
func (s *Store) HasFacility(facility world.Entity) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.data {
		if a.Facility == facility {
			return true
		}
	}
	return false
}

// ClaimedFacilities returns the set of facilities with a live assignment.
func (s *Store) ClaimedFacilities() map[world.Entity]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make(map[world.Entity]struct{}, len(s.data))
	for _, a := range s.data {
		res[a.Facility] = struct{}{}
	}
	return res
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// List returns a copy of all records ordered by agent handle.
func (s *Store) List() []model.Assignment {
	s.mu.RLock()
	res := make([]model.Assignment, 0, len(s.data))
	for _, a := range s.data {
		res = append(res, a)
	}
	s.mu.RUnlock()
	sortByAgent(res)
	return res
}

// Prune drops every record for which keep returns false and returns the dropped records.
func (s *Store) Prune(keep func(model.Assignment) bool) []model.Assignment {
	dropped := s.prune(keep)
	sortByAgent(dropped)
	return dropped
}

func (s *Store) prune(keep func(model.Assignment) bool) []model.Assignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []model.Assignment
	for id, a := range s.data {
		if !keep(a) {
			dropped = append(dropped, a)
			delete(s.data, id)
		}
	}
	return dropped
}

// RebuildResult summarizes a rebuild from world markers.
type RebuildResult struct {
	Restored int
	// Duplicates lists agents whose marker targets a facility already claimed
	// by an earlier assignment. Their markers should be cleared.
	Duplicates []world.Entity
}

// Rebuild replaces the store content with the assignments found as markers on
// world agents. When two markers target the same facility the older one wins.
func (s *Store) Rebuild(q world.Query) RebuildResult {
	marked := q.Marked()
	recs := make([]model.Assignment, 0, len(marked))
	for _, agent := range marked {
		if !q.Exists(agent) {
			continue
		}
		m, ok := q.Marker(agent)
		if !ok {
			continue
		}
		recs = append(recs, model.FromMarker(agent, m))
	}
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].CreatedTick != recs[j].CreatedTick {
			return recs[i].CreatedTick < recs[j].CreatedTick
		}
		return less(recs[i].Agent, recs[j].Agent)
	})

	var res RebuildResult
	data := make(map[world.Entity]model.Assignment, len(recs))
	claimed := make(map[world.Entity]struct{}, len(recs))
	for _, r := range recs {
		if _, dup := claimed[r.Facility]; dup {
			res.Duplicates = append(res.Duplicates, r.Agent)
			continue
		}
		claimed[r.Facility] = struct{}{}
		data[r.Agent] = r
	}
	res.Restored = len(data)

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return res
}

func sortByAgent(list []model.Assignment) {
	sort.Slice(list, func(i, j int) bool { return less(list[i].Agent, list[j].Agent) })
}

func less(a, b world.Entity) bool {
	if a.Index != b.Index {
		return a.Index < b.Index
	}
	return a.Version < b.Version
}
