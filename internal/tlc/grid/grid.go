// Package grid provides the dense matrix types shared by the reduction
// pipeline: byte matrices for raw video intensity and float32 matrices for
// temperature and Nusselt fields.
//
// Matrices are flat slices with explicit row/column addressing, following the
// same layout convention throughout: index = row*Cols + col.
package grid

import (
	"fmt"
	"math"
)

// ByteMatrix is a dense rows x cols matrix of single-byte cells.
type ByteMatrix struct {
	Rows int
	Cols int
	Data []uint8
}

// NewByteMatrix allocates a zeroed rows x cols byte matrix.
func NewByteMatrix(rows, cols int) *ByteMatrix {
	return &ByteMatrix{Rows: rows, Cols: cols, Data: make([]uint8, rows*cols)}
}

// Idx returns the flat index of cell (r, c).
func (m *ByteMatrix) Idx(r, c int) int { return r*m.Cols + c }

// Row returns the contiguous backing slice of row r.
func (m *ByteMatrix) Row(r int) []uint8 {
	return m.Data[r*m.Cols : (r+1)*m.Cols]
}

// Col copies column c into dst, which must have length Rows.
func (m *ByteMatrix) Col(c int, dst []uint8) {
	for r := 0; r < m.Rows; r++ {
		dst[r] = m.Data[r*m.Cols+c]
	}
}

// SetCol writes src, which must have length Rows, into column c.
func (m *ByteMatrix) SetCol(c int, src []uint8) {
	for r := 0; r < m.Rows; r++ {
		m.Data[r*m.Cols+c] = src[r]
	}
}

// Clone returns a deep copy.
func (m *ByteMatrix) Clone() *ByteMatrix {
	out := NewByteMatrix(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}

// Matrix is a dense rows x cols matrix of float32 cells.
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// FromSlice wraps data as a rows x cols matrix without copying.
// It fails when the slice length does not match the requested shape.
func FromSlice(data []float32, rows, cols int) (*Matrix, error) {
	if len(data) != rows*cols {
		return nil, fmt.Errorf("grid: cannot reshape %d values into %dx%d", len(data), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// Idx returns the flat index of cell (r, c).
func (m *Matrix) Idx(r, c int) int { return r*m.Cols + c }

// At returns the value at (r, c).
func (m *Matrix) At(r, c int) float32 { return m.Data[r*m.Cols+c] }

// Row returns the contiguous backing slice of row r.
func (m *Matrix) Row(r int) []float32 {
	return m.Data[r*m.Cols : (r+1)*m.Cols]
}

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := NewMatrix(m.Rows, m.Cols)
	copy(out.Data, m.Data)
	return out
}

// FlipRows reverses the row order in place. Pixel row 0 is the bottom of the
// region in physical space but the top of a decoded frame buffer; results are
// flipped once before leaving the pipeline.
func (m *Matrix) FlipRows() {
	for top, bot := 0, m.Rows-1; top < bot; top, bot = top+1, bot-1 {
		a, b := m.Row(top), m.Row(bot)
		for i := range a {
			a[i], b[i] = b[i], a[i]
		}
	}
}

// BlockMean reduces the matrix by averaging non-overlapping k x k blocks,
// discarding any partial blocks at the right and bottom edges.
func (m *Matrix) BlockMean(k int) (*Matrix, error) {
	if k <= 0 {
		return nil, fmt.Errorf("grid: block size %d out of range", k)
	}
	rows, cols := m.Rows/k, m.Cols/k
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("grid: %dx%d matrix too small for %dx%d blocks", m.Rows, m.Cols, k, k)
	}
	out := NewMatrix(rows, cols)
	n := float32(k * k)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			var sum float32
			for i := 0; i < k; i++ {
				row := m.Row(r*k + i)
				for j := 0; j < k; j++ {
					sum += row[c*k+j]
				}
			}
			out.Data[r*cols+c] = sum / n
		}
	}
	return out, nil
}

// NaNMean returns the mean of all cells, ignoring NaN entries.
// A matrix of only NaN cells yields NaN.
func (m *Matrix) NaNMean() float32 {
	var sum float64
	var n int
	for _, v := range m.Data {
		if math.IsNaN(float64(v)) {
			continue
		}
		sum += float64(v)
		n++
	}
	if n == 0 {
		return float32(math.NaN())
	}
	return float32(sum / float64(n))
}
