package agents

import (
	"net/http"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/pkg/export"
)

// NewListHandler exposes every live assignment via GET /api/assignments.
// The format query parameter selects json (default), csv or zstd.
func NewListHandler(q world.Query, store *assignment.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		format := r.URL.Query().Get("format")
		switch format {
		case "", "json":
			w.Header().Set("Content-Type", "application/json")
		case "csv":
			w.Header().Set("Content-Type", "text/csv")
		case "zstd":
			w.Header().Set("Content-Type", "application/zstd")
		default:
			http.Error(w, "unknown format", http.StatusBadRequest)
			return
		}
		rows := export.Rows(q, store.List())
		if err := export.Write(w, format, rows); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
