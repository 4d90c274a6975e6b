package snapshot

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
)

// Limits bounds the cost of a scan.
type Limits struct {
	MaxCandidates               int
	MaxFacilities               int
	MinFailureCount             int
	MaintenanceThresholdPercent int
	// Workers is the number of partitions scanned concurrently.
	Workers int
	// PartitionSize is the number of handles per partition.
	PartitionSize int
}

func (l *Limits) setDefaults() {
	if l.Workers <= 0 {
		l.Workers = 4
	}
	if l.PartitionSize <= 0 {
		l.PartitionSize = 512
	}
}

// Snapshot is the per-pass extraction of eligible candidates and underserviced
// facilities. Its slices are reused across passes.
type Snapshot struct {
	Candidates []model.Candidate
	Facilities []model.NeedyFacility
}

// Reset truncates both lists while keeping their capacity.
func (s *Snapshot) Reset() {
	s.Candidates = s.Candidates[:0]
	s.Facilities = s.Facilities[:0]
}

// Empty reports whether matching can be skipped.
func (s *Snapshot) Empty() bool {
	return len(s.Candidates) == 0 || len(s.Facilities) == 0
}

// Reader extracts snapshots from a world. A Reader is not safe for concurrent
// Scan calls: the returned Snapshot and the partition buffers are owned by it
// and overwritten by the next Scan.
type Reader struct {
	limits Limits
	snap   Snapshot
	cands  [][]model.Candidate
	facs   [][]model.NeedyFacility
}

// NewReader returns a Reader bounded by limits.
func NewReader(limits Limits) *Reader {
	limits.setDefaults()
	return &Reader{limits: limits}
}

// Limits returns the effective limits.
func (r *Reader) Limits() Limits { return r.limits }

// Scan extracts candidates and needy facilities. excluded reports agents that
// already hold an assignment; it may be nil.
func (r *Reader) Scan(ctx context.Context, q world.Query, excluded func(world.Entity) bool) (*Snapshot, error) {
	r.snap.Reset()
	if r.limits.MaxFacilities > 0 {
		facilities := q.Facilities()
		r.facs = grow(r.facs, partitions(len(facilities), r.limits.PartitionSize))
		err := scan(ctx, r.limits, facilities, r.facs, r.limits.MaxFacilities, func(e world.Entity) (model.NeedyFacility, bool) {
			return needy(q, e, r.limits)
		})
		if err != nil {
			return nil, fmt.Errorf("scan facilities: %w", err)
		}
		r.snap.Facilities = merge(r.snap.Facilities, r.facs, r.limits.MaxFacilities)
	}
	// Candidates are only worth extracting when something needs them.
	if len(r.snap.Facilities) > 0 && r.limits.MaxCandidates > 0 {
		agents := q.Agents()
		r.cands = grow(r.cands, partitions(len(agents), r.limits.PartitionSize))
		err := scan(ctx, r.limits, agents, r.cands, r.limits.MaxCandidates, func(e world.Entity) (model.Candidate, bool) {
			return candidate(q, e, excluded)
		})
		if err != nil {
			return nil, fmt.Errorf("scan candidates: %w", err)
		}
		r.snap.Candidates = merge(r.snap.Candidates, r.cands, r.limits.MaxCandidates)
	}
	return &r.snap, nil
}

func partitions(n, size int) int {
	return (n + size - 1) / size
}

func grow[T any](bufs [][]T, n int) [][]T {
	for len(bufs) < n {
		bufs = append(bufs, nil)
	}
	return bufs[:n]
}

// scan fills bufs[i] with the accepted items of the i-th partition of ids.
// Each partition stops after limit items; merge applies the global cap.
func scan[T any](ctx context.Context, l Limits, ids []world.Entity, bufs [][]T, limit int, accept func(world.Entity) (T, bool)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.Workers)
	for i := range bufs {
		lo := i * l.PartitionSize
		hi := min(lo+l.PartitionSize, len(ids))
		part := ids[lo:hi]
		idx := i
		g.Go(func() error {
			buf := bufs[idx][:0]
			for _, id := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				if v, ok := accept(id); ok {
					buf = append(buf, v)
					if len(buf) >= limit {
						break
					}
				}
			}
			bufs[idx] = buf
			return nil
		})
	}
	return g.Wait()
}

func merge[T any](dst []T, bufs [][]T, limit int) []T {
	for _, b := range bufs {
		for _, v := range b {
			if len(dst) >= limit {
				return dst
			}
			dst = append(dst, v)
		}
	}
	return dst
}

func candidate(q world.Query, e world.Entity, excluded func(world.Entity) bool) (model.Candidate, bool) {
	a, err := q.Agent(e)
	if err != nil {
		return model.Candidate{}, false
	}
	if !a.Household || a.Employed || a.Child || !a.Available() || a.Volunteering {
		return model.Candidate{}, false
	}
	if excluded != nil && excluded(e) {
		return model.Candidate{}, false
	}
	for _, loc := range [...]world.Entity{a.Building, a.Vehicle} {
		if loc.IsZero() {
			continue
		}
		pos, err := q.Position(loc)
		if err == nil {
			return model.Candidate{Agent: e, Position: pos}, true
		}
	}
	return model.Candidate{}, false
}

func needy(q world.Query, e world.Entity, l Limits) (model.NeedyFacility, bool) {
	f, err := q.Facility(e)
	if err != nil || f.Request.IsZero() || f.Capacity <= 0 {
		return model.NeedyFacility{}, false
	}
	req, err := q.Request(f.Request)
	if err != nil || req.Completed || req.Failures < l.MinFailureCount {
		return model.NeedyFacility{}, false
	}
	pct := f.ServicePercent()
	if pct > l.MaintenanceThresholdPercent {
		return model.NeedyFacility{}, false
	}
	pos, err := q.Position(e)
	if err != nil {
		return model.NeedyFacility{}, false
	}
	return model.NeedyFacility{
		Facility:       e,
		Request:        f.Request,
		Position:       pos,
		FailureCount:   req.Failures,
		ServicePercent: pct,
	}, true
}
