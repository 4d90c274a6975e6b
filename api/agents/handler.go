package agents

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/world"
)

// NewAssignmentHandler exposes the assignment projection of one agent via
// GET /api/agents/{agent}/assignment. The path value is either a slot index,
// resolved to the live handle, or a full "index:version" handle.
func NewAssignmentHandler(q world.Query, store *assignment.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		agent, err := lookup(q, r.PathValue("agent"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(store.View(q, agent)); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func lookup(q world.Query, raw string) (world.Entity, error) {
	idx, ver, full := strings.Cut(raw, ":")
	index, err := strconv.ParseUint(idx, 10, 32)
	if err != nil || index == 0 {
		return world.Entity{}, fmt.Errorf("invalid agent %q", raw)
	}
	if full {
		version, err := strconv.ParseUint(ver, 10, 32)
		if err != nil {
			return world.Entity{}, fmt.Errorf("invalid agent %q", raw)
		}
		e := world.Entity{Index: uint32(index), Version: uint32(version)}
		if !q.Exists(e) {
			return world.Entity{}, fmt.Errorf("agent %s not found", e)
		}
		return e, nil
	}
	for _, e := range q.Agents() {
		if e.Index == uint32(index) {
			return e, nil
		}
	}
	return world.Entity{}, fmt.Errorf("agent %d not found", index)
}
