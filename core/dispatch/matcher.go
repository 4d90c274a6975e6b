package dispatch

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
)

// Matcher pairs needy facilities with nearby candidates. It is a greedy,
// bounded nearest-first search, not a globally optimal assignment.
type Matcher struct {
	// MaxCandidatesToCheck bounds the number of valid candidates inspected per facility.
	MaxCandidatesToCheck int
}

// Match returns at most limit pairs. Facilities are visited in input order and
// those in claimed are skipped. Agents in used are never selected; used may be
// nil. valid revalidates a candidate against the live world; an invalid
// candidate is skipped without counting toward the search bound. Ties keep the
// first candidate found, so identical inputs always produce identical pairs.
func (m Matcher) Match(cands []model.Candidate, facs []model.NeedyFacility, claimed, used map[world.Entity]struct{}, limit int, valid func(world.Entity) bool) []model.Pair {
	if limit <= 0 || len(cands) == 0 || len(facs) == 0 {
		return nil
	}
	bound := m.MaxCandidatesToCheck
	if bound <= 0 {
		bound = len(cands)
	}
	taken := make([]bool, len(cands))
	for i, c := range cands {
		if _, ok := used[c.Agent]; ok {
			taken[i] = true
		}
	}
	invalid := make(map[int]struct{})
	served := make(map[world.Entity]struct{}, len(facs))

	var pairs []model.Pair
	for _, f := range facs {
		if len(pairs) >= limit {
			break
		}
		if _, ok := claimed[f.Facility]; ok {
			continue
		}
		if _, ok := served[f.Facility]; ok {
			continue
		}
		best := -1
		var bestDist float64
		checked := 0
		for i, c := range cands {
			if checked >= bound {
				break
			}
			if taken[i] {
				continue
			}
			if _, bad := invalid[i]; bad {
				continue
			}
			if valid != nil && !valid(c.Agent) {
				invalid[i] = struct{}{}
				continue
			}
			checked++
			d := sqDist(c, f)
			if best < 0 || d < bestDist {
				best, bestDist = i, d
			}
		}
		if best < 0 {
			// every remaining candidate is used or invalid
			if checked == 0 {
				break
			}
			continue
		}
		taken[best] = true
		served[f.Facility] = struct{}{}
		pairs = append(pairs, model.Pair{Candidate: cands[best], Facility: f})
	}
	return pairs
}

func sqDist(c model.Candidate, f model.NeedyFacility) float64 {
	return r3.Norm2(r3.Sub(c.Position, f.Position))
}
