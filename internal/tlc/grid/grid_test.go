package grid

import (
	"math"
	"testing"
)

func TestByteMatrixColRoundTrip(t *testing.T) {
	m := NewByteMatrix(3, 2)
	m.SetCol(1, []uint8{1, 5, 3})

	got := make([]uint8, 3)
	m.Col(1, got)
	want := []uint8{1, 5, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("col[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	// Column 0 untouched.
	m.Col(0, got)
	for i, v := range got {
		if v != 0 {
			t.Errorf("col 0 row %d = %d, want 0", i, v)
		}
	}
}

func TestFromSliceShapeMismatch(t *testing.T) {
	if _, err := FromSlice(make([]float32, 5), 2, 3); err == nil {
		t.Fatal("expected reshape error for 5 values into 2x3")
	}
	m, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	if err != nil {
		t.Fatalf("FromSlice: %v", err)
	}
	if m.At(1, 2) != 6 {
		t.Errorf("At(1,2) = %v, want 6", m.At(1, 2))
	}
}

func TestFlipRows(t *testing.T) {
	m, _ := FromSlice([]float32{1, 2, 3, 4, 5, 6}, 3, 2)
	m.FlipRows()
	want := []float32{5, 6, 3, 4, 1, 2}
	for i, v := range want {
		if m.Data[i] != v {
			t.Errorf("data[%d] = %v, want %v", i, m.Data[i], v)
		}
	}
}

func TestBlockMean(t *testing.T) {
	// 4x4 with distinct 2x2 block means: 1, 2, 3, 4.
	m, _ := FromSlice([]float32{
		1, 1, 2, 2,
		1, 1, 2, 2,
		3, 3, 4, 4,
		3, 3, 4, 4,
	}, 4, 4)
	out, err := m.BlockMean(2)
	if err != nil {
		t.Fatalf("BlockMean: %v", err)
	}
	want := []float32{1, 2, 3, 4}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("block[%d] = %v, want %v", i, out.Data[i], v)
		}
	}
}

func TestBlockMeanDiscardsPartialBlocks(t *testing.T) {
	m := NewMatrix(5, 5)
	out, err := m.BlockMean(2)
	if err != nil {
		t.Fatalf("BlockMean: %v", err)
	}
	if out.Rows != 2 || out.Cols != 2 {
		t.Errorf("shape = %dx%d, want 2x2", out.Rows, out.Cols)
	}
	if _, err := m.BlockMean(6); err == nil {
		t.Error("expected error when block exceeds matrix")
	}
}

func TestNaNMean(t *testing.T) {
	nan := float32(math.NaN())
	m, _ := FromSlice([]float32{1, nan, 3, nan}, 2, 2)
	if got := m.NaNMean(); got != 2 {
		t.Errorf("NaNMean = %v, want 2", got)
	}

	all, _ := FromSlice([]float32{nan, nan}, 1, 2)
	if got := all.NaNMean(); !math.IsNaN(float64(got)) {
		t.Errorf("NaNMean of all-NaN = %v, want NaN", got)
	}
}
