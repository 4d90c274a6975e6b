package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
	"github.com/kilianp07/volunteer/simulator"
)

func sampleRows(t *testing.T) []Row {
	t.Helper()
	w := simulator.New(simulator.Config{})
	home := w.AddBuilding("home", r3.Vec{})
	agent, err := w.AddAgent(simulator.AgentSpec{Name: "alice", Home: home})
	require.NoError(t, err)
	park := w.AddPark("north-park", r3.Vec{X: 10}, 100, 5)
	req, err := w.AddRequest(park, 3)
	require.NoError(t, err)
	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	return Rows(w, []model.Assignment{
		{Agent: agent, Facility: park, Request: req, Origin: home, CreatedAt: created, CreatedTick: 12},
		{Agent: world.Entity{Index: 99, Version: 1}, Facility: park, CreatedAt: created},
	})
}

func TestRows(t *testing.T) {
	rows := sampleRows(t)
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0].AgentName)
	assert.Equal(t, "north-park", rows[0].FacilityName)
	assert.NotEmpty(t, rows[0].Request)
	assert.Empty(t, rows[1].Request)
}

func TestWriteJSON(t *testing.T) {
	rows := sampleRows(t)
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, rows))
	var out []Row
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, rows, out)
}

func TestWriteCSV(t *testing.T) {
	rows := sampleRows(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	recs, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "agent", recs[0][0])
	assert.Equal(t, "north-park", recs[1][3])
	assert.Equal(t, "2024-01-01T08:00:00Z", recs[1][5])
	assert.Equal(t, "12", recs[1][6])
}

func TestWriteZstdJSON(t *testing.T) {
	rows := sampleRows(t)
	var buf bytes.Buffer
	require.NoError(t, WriteZstdJSON(&buf, rows))
	// zstd frame magic number
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, buf.Bytes()[:4])
	out, err := ReadZstdJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, rows, out)
}

func TestWriteUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, "xml", nil); err == nil {
		t.Fatalf("expected error")
	}
}
