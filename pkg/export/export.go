// Package export writes the live assignment table in JSON, CSV and
// zstd-compressed JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kilianp07/volunteer/core/model"
	"github.com/kilianp07/volunteer/core/world"
)

// Row is one exported assignment with its display names resolved.
type Row struct {
	Agent        string    `json:"agent"`
	AgentName    string    `json:"agent_name"`
	Facility     string    `json:"facility"`
	FacilityName string    `json:"facility_name"`
	Request      string    `json:"request,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedTick  uint64    `json:"created_tick"`
}

// Rows resolves names for list. q may be nil.
func Rows(q world.Query, list []model.Assignment) []Row {
	rows := make([]Row, len(list))
	for i, a := range list {
		rows[i] = Row{
			Agent:       a.Agent.String(),
			Facility:    a.Facility.String(),
			CreatedAt:   a.CreatedAt,
			CreatedTick: a.CreatedTick,
		}
		if !a.Request.IsZero() {
			rows[i].Request = a.Request.String()
		}
		if q != nil {
			rows[i].AgentName = q.Name(a.Agent)
			rows[i].FacilityName = q.Name(a.Facility)
		}
	}
	return rows
}

// WriteJSON writes rows to w in JSON format.
func WriteJSON(w io.Writer, rows []Row) error {
	enc := json.NewEncoder(w)
	return enc.Encode(rows)
}

// WriteCSV writes rows to w in CSV format with a header line.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"agent", "agent_name", "facility", "facility_name", "request", "created_at", "created_tick"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Agent,
			r.AgentName,
			r.Facility,
			r.FacilityName,
			r.Request,
			r.CreatedAt.Format(time.RFC3339),
			strconv.FormatUint(r.CreatedTick, 10),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteZstdJSON writes rows as zstd-compressed JSON.
func WriteZstdJSON(w io.Writer, rows []Row) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := WriteJSON(enc, rows); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadZstdJSON decodes rows written by WriteZstdJSON.
func ReadZstdJSON(r io.Reader) ([]Row, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	var rows []Row
	if err := json.NewDecoder(dec).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// Write encodes rows in format: "json", "csv" or "zstd".
func Write(w io.Writer, format string, rows []Row) error {
	switch format {
	case "", "json":
		return WriteJSON(w, rows)
	case "csv":
		return WriteCSV(w, rows)
	case "zstd":
		return WriteZstdJSON(w, rows)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}
