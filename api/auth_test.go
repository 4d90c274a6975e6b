package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/assignment"
	"github.com/kilianp07/volunteer/core/journal"
	"github.com/kilianp07/volunteer/simulator"
)

func TestMuxRequiresToken(t *testing.T) {
	w := simulator.New(simulator.Config{})
	home := w.AddBuilding("home", r3.Vec{})
	agent, err := w.AddAgent(simulator.AgentSpec{Home: home})
	if err != nil {
		t.Fatalf("add agent: %v", err)
	}
	store, err := journal.NewJSONLStore(filepath.Join(t.TempDir(), "j.jsonl"))
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	defer store.Close()
	mux := NewMux(w, assignment.NewStore(), store, "tok")

	for _, path := range []string{"/api/assignments", "/api/journal", "/api/agents/" + agent.String() + "/assignment"} {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, rr.Code)
		}
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer tok")
		rr = httptest.NewRecorder()
		mux.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, rr.Code)
		}
	}
}

func TestMuxWithoutJournal(t *testing.T) {
	mux := NewMux(simulator.New(simulator.Config{}), assignment.NewStore(), nil, "")
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/journal", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/assignments", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}
