// Package api exposes the read-only HTTP surface of the volunteer engine.
package api

import (
	"net/http"

	"github.com/kilianp07/volunteer/api/agents"
	journalapi "github.com/kilianp07/volunteer/api/journal"
	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/journal"
	"github.com/kilianp07/volunteer/core/world"
)

// RequireToken rejects requests without an "Authorization: Bearer <token>"
// header. An empty token disables the check.
func RequireToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// NewMux registers every route. store may be nil when the journal is disabled.
func NewMux(q world.Query, assigned *assignment.Store, store journal.Store, token string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /api/agents/{agent}/assignment", RequireToken(token, agents.NewAssignmentHandler(q, assigned)))
	mux.Handle("GET /api/assignments", RequireToken(token, agents.NewListHandler(q, assigned)))
	if store != nil {
		mux.Handle("GET /api/journal", RequireToken(token, journalapi.NewHandler(store)))
	}
	return mux
}
