// Package daq reads data-acquisition temperature logs. Supported formats
// are LabVIEW measurement files (.lvm, tab-delimited) and plain .csv; both
// parse into the same samples x channels table.
package daq

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrEmpty reports a log with no data rows.
var ErrEmpty = errors.New("daq: no samples in log")

// Table is a DAQ log: one row per sample tick, one column per channel.
type Table struct {
	Rows, Cols int
	Data       []float32
}

// At returns the sample in row r, channel c.
func (t *Table) At(r, c int) float32 { return t.Data[r*t.Cols+c] }

// Column copies channel c into a fresh slice.
func (t *Table) Column(c int) []float32 {
	out := make([]float32, t.Rows)
	for r := range out {
		out[r] = t.Data[r*t.Cols+c]
	}
	return out
}

// Read parses the log at path, choosing the delimiter from the file
// extension.
func Read(path string) (*Table, error) {
	var comma rune
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".lvm":
		comma = '\t'
	case ".csv":
		comma = ','
	default:
		return nil, fmt.Errorf("daq: unsupported log format %q (want .lvm or .csv)", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("daq: open log: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = comma
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("daq: parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("daq: %s: %w", path, ErrEmpty)
	}

	cols := len(records[0])
	t := &Table{Rows: len(records), Cols: cols, Data: make([]float32, 0, len(records)*cols)}
	for i, rec := range records {
		for j, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 32)
			if err != nil {
				return nil, fmt.Errorf("daq: %s row %d column %d: bad sample %q", path, i+1, j+1, cell)
			}
			t.Data = append(t.Data, float32(v))
		}
	}
	return t, nil
}
