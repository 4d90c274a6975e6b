package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/volunteer/core/logger"
)

// Kind classifies journal records.
type Kind string

const (
	KindPass      Kind = "pass"
	KindDispatch  Kind = "dispatch"
	KindArrived   Kind = "arrived"
	KindAbandoned Kind = "abandoned"
)

// Record is one audit line. Entity handles are stored in their "index:version" form.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Tick      uint64    `json:"tick"`
	Kind      Kind      `json:"kind"`
	PassID    string    `json:"pass_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Facility  string    `json:"facility,omitempty"`
	Request   string    `json:"request,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	// Count is the number of volunteers dispatched by a pass.
	Count int    `json:"count,omitempty"`
	Error string `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero values match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	Kind     Kind
	Agent    string
	Facility string
	// Limit keeps only the most recent records when > 0.
	Limit int
}

// Matches reports whether r satisfies every filter of q except Limit.
func (q Query) Matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Agent != "" && r.Agent != q.Agent {
		return false
	}
	if q.Facility != "" && r.Facility != q.Facility {
		return false
	}
	return true
}

func (q Query) limit(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists Records and supports querying. The journal is write-only
// from the engine's point of view: assignments are never rebuilt from it.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error         { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                 { return nil }

// Config defines settings for journal storage and rotation.
type Config struct {
	// Backend selects the store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB enables rotation of jsonl files when > 0.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		c.Path = "volunteer-journal.jsonl"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("unknown journal backend %s", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("journal path is required")
	}
	return nil
}

// Open creates the store described by cfg.
func Open(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	case "none":
		return NopStore{}, nil
	default:
		if cfg.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
		}
		return NewJSONLStore(cfg.Path)
	}
}

// Append writes rec to s when s is set. Failures are logged and never
// propagated: the journal is diagnostics only.
func Append(ctx context.Context, s Store, log logger.Logger, rec Record) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, rec); err != nil {
		logger.OrNop(log).Warnf("journal append %s: %v", rec.Kind, err)
	}
}
