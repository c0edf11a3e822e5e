// Package export saves and restores reduction results: CSV matrices for
// downstream tooling, NaN-aware summary statistics, and heatmap renderings.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
)

// WriteMatrixCSV writes m as plain comma-separated rows, no header. Values
// round-trip at float32 precision; NaN cells serialize as "NaN".
func WriteMatrixCSV(w io.Writer, m *grid.Matrix) error {
	cw := csv.NewWriter(w)
	rec := make([]string, m.Cols)
	for r := 0; r < m.Rows; r++ {
		row := m.Row(r)
		for c, v := range row {
			rec[c] = strconv.FormatFloat(float64(v), 'g', -1, 32)
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("export: write csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadMatrixCSV parses a matrix written by WriteMatrixCSV.
func ReadMatrixCSV(r io.Reader) (*grid.Matrix, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("export: parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("export: empty csv matrix")
	}
	cols := len(records[0])
	data := make([]float32, 0, len(records)*cols)
	for i, rec := range records {
		for j, cell := range rec {
			v, err := strconv.ParseFloat(cell, 32)
			if err != nil {
				return nil, fmt.Errorf("export: csv row %d column %d: bad value %q", i+1, j+1, cell)
			}
			data = append(data, float32(v))
		}
	}
	return grid.FromSlice(data, len(records), cols)
}

// SaveCSV writes m to path, creating or truncating it.
func SaveCSV(path string, m *grid.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: create %s: %w", path, err)
	}
	if err := WriteMatrixCSV(f, m); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadCSV reads a matrix from path.
func LoadCSV(path string) (*grid.Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("export: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadMatrixCSV(f)
}
