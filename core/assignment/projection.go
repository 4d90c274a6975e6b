package assignment

import "github.com/kilianp07/volunteer/core/world"

// Projection is the read-only view of an agent's assignment shown to users.
type Projection struct {
	Volunteering bool         `json:"volunteering"`
	TargetName   string       `json:"target_name,omitempty"`
	Target       world.Entity `json:"target"`
}

// View computes the projection for agent from the current store state.
// Nothing is cached; every call reflects the live records.
func (s *Store) View(q world.Query, agent world.Entity) Projection {
	a, ok := s.Get(agent)
	if !ok {
		return Projection{}
	}
	p := Projection{Volunteering: true, Target: a.Facility}
	if q != nil && q.Exists(a.Facility) {
		p.TargetName = q.Name(a.Facility)
	}
	return p
}
