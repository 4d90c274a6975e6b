package journal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kilianp07/volunteer/core/journal"
)

func TestHandlerFilters(t *testing.T) {
	store, err := journal.NewJSONLStore(filepath.Join(t.TempDir(), "journal.jsonl"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer store.Close()
	now := time.Now().UTC()
	recs := []journal.Record{
		{Timestamp: now.Add(-2 * time.Hour), Kind: journal.KindPass, PassID: "p1", Count: 1},
		{Timestamp: now.Add(-2 * time.Hour), Kind: journal.KindDispatch, PassID: "p1", Agent: "1:1", Facility: "5:1"},
		{Timestamp: now, Kind: journal.KindArrived, Agent: "1:1", Facility: "5:1"},
		{Timestamp: now, Kind: journal.KindDispatch, Agent: "2:1", Facility: "6:1"},
	}
	for _, r := range recs {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	h := NewHandler(store)

	get := func(url string) (int, []journal.Record) {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		var out []journal.Record
		if rr.Code == http.StatusOK {
			if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
		}
		return rr.Code, out
	}

	if code, out := get("/api/journal?agent=1:1"); code != http.StatusOK || len(out) != 2 {
		t.Fatalf("agent filter: %d %+v", code, out)
	}
	if _, out := get("/api/journal?kind=dispatch&limit=1"); len(out) != 1 || out[0].Agent != "2:1" {
		t.Fatalf("kind+limit filter: %+v", out)
	}
	start := now.Add(-time.Hour).Format(time.RFC3339)
	if _, out := get("/api/journal?start=" + start); len(out) != 2 {
		t.Fatalf("start filter: %+v", out)
	}
	if _, out := get("/api/journal?facility=9:9"); out == nil || len(out) != 0 {
		t.Fatalf("expected empty list got %+v", out)
	}
	for _, bad := range []string{"start=yesterday", "end=soon", "limit=-1"} {
		if code, _ := get("/api/journal?" + bad); code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", bad, code)
		}
	}
}
