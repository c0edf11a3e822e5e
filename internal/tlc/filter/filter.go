// Package filter applies per-pixel temporal filters to the green intensity
// matrix and locates each pixel's peak frame. Every filter operates on one
// pixel's time series independently, so whole-matrix filtering is a
// fork-join over the pixel axis and a single pixel can be filtered on its
// own for interactive inspection.
package filter

import (
	"errors"
	"fmt"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
	"github.com/banshee-data/tlc.report/internal/tlc/parallel"
)

// Kind selects the temporal filter family.
type Kind int

const (
	// None leaves the series untouched.
	None Kind = iota
	// Median applies a streaming median over the time axis.
	Median
	// Wavelet applies db8 decomposition with per-level soft thresholding.
	Wavelet
)

// Method is a filter selection plus its parameter.
type Method struct {
	Kind Kind `json:"kind"`
	// Window is the median window size (Median only).
	Window int `json:"window,omitempty"`
	// Ratio scales each decomposition level's max |coefficient| into a
	// soft threshold (Wavelet only).
	Ratio float32 `json:"threshold_ratio,omitempty"`
}

// ErrEmptySeries reports peak detection over a pixel with no frames.
var ErrEmptySeries = errors.New("filter: empty intensity series")

// Apply filters every pixel column of raw and returns a matrix of identical
// shape. Rows are frames and columns are pixels.
func Apply(raw *grid.ByteMatrix, m Method) (*grid.ByteMatrix, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	out := raw.Clone()
	if m.Kind == None {
		return out, nil
	}

	frames := raw.Rows
	level, filterLen := waveletPlan(frames)
	parallel.Chunks(raw.Cols, func(lo, hi int) {
		series := make([]uint8, frames)
		for col := lo; col < hi; col++ {
			out.Col(col, series)
			switch m.Kind {
			case Median:
				medianFilter(series, m.Window)
			case Wavelet:
				waveletFilter(series, level, filterLen, m.Ratio)
			}
			out.SetCol(col, series)
		}
	})
	return out, nil
}

// ApplyColumn filters a single pixel's series without touching the rest of
// the matrix.
func ApplyColumn(raw *grid.ByteMatrix, col int, m Method) ([]uint8, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	if col < 0 || col >= raw.Cols {
		return nil, fmt.Errorf("filter: pixel %d out of range (%d pixels)", col, raw.Cols)
	}
	series := make([]uint8, raw.Rows)
	raw.Col(col, series)
	switch m.Kind {
	case Median:
		medianFilter(series, m.Window)
	case Wavelet:
		level, filterLen := waveletPlan(raw.Rows)
		waveletFilter(series, level, filterLen, m.Ratio)
	}
	return series, nil
}

func validate(m Method) error {
	switch m.Kind {
	case None:
		return nil
	case Median:
		if m.Window < 1 {
			return fmt.Errorf("filter: median window %d out of range", m.Window)
		}
		return nil
	case Wavelet:
		if m.Ratio < 0 {
			return fmt.Errorf("filter: wavelet threshold ratio %v out of range", m.Ratio)
		}
		return nil
	default:
		return fmt.Errorf("filter: unknown filter kind %d", m.Kind)
	}
}

// DetectPeaks returns, per pixel column, the frame index with the maximum
// intensity. Ties resolve to the earliest frame.
func DetectPeaks(filtered *grid.ByteMatrix) ([]int, error) {
	if filtered.Rows == 0 {
		return nil, fmt.Errorf("detect peaks: %w", ErrEmptySeries)
	}
	peaks := make([]int, filtered.Cols)
	parallel.Chunks(filtered.Cols, func(lo, hi int) {
		for col := lo; col < hi; col++ {
			best := 0
			bestVal := filtered.Data[col]
			for r := 1; r < filtered.Rows; r++ {
				if v := filtered.Data[r*filtered.Cols+col]; v > bestVal {
					best, bestVal = r, v
				}
			}
			peaks[col] = best
		}
	})
	return peaks, nil
}
