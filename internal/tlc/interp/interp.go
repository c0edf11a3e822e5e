// Package interp expands the sparse thermocouple temperature histories onto
// the full calculation region, by 1D interpolation along one axis or by
// bilinear interpolation over a regular thermocouple grid.
//
// Precondition: thermocouple coordinates must be sorted ascending along each
// interpolation axis. The bracket scan is monotonic and does not validate
// ordering.
package interp

import (
	"errors"
	"fmt"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
	"github.com/banshee-data/tlc.report/internal/tlc/parallel"
)

// Kind selects the interpolation family.
type Kind int

const (
	// Horizontal interpolates along the x axis; rows broadcast.
	Horizontal Kind = iota
	// Vertical interpolates along the y axis; columns broadcast.
	Vertical
	// Bilinear interpolates over a regular thermocouple grid.
	Bilinear
)

// Method selects interpolation behaviour.
type Method struct {
	Kind Kind `json:"kind"`
	// Extrapolate lets positions outside the outermost thermocouples
	// continue the boundary gradient instead of clamping to it.
	Extrapolate bool `json:"extrapolate,omitempty"`
	// TCShape is the thermocouple grid height and width (Bilinear only).
	TCShape [2]int `json:"tc_shape,omitempty"`
}

// previewBlock is the block-averaging factor for single-frame previews.
const previewBlock = 5

// lanes is the batch width of the inner frame loops; the last partial batch
// falls back to scalar arithmetic.
const lanes = 8

// ErrEmptyBracket reports a bracket search over fewer than two thermocouples.
var ErrEmptyBracket = errors.New("interp: need at least two thermocouples along the axis")

// Field is an interpolated temperature field: one row per interpolated
// position (region columns, region rows, or region pixels depending on the
// method) and one column per frame.
type Field struct {
	temps   *grid.Matrix
	regionH int
	regionW int
}

// New interpolates the thermocouple x frame matrix t2d onto the region.
// tcYX holds each thermocouple's pixel position (y, x) in full-frame
// coordinates; topLeft is the region origin (y, x) and regionShape its
// (height, width).
func New(t2d *grid.Matrix, m Method, tcYX [][2]int, topLeft, regionShape [2]int) (*Field, error) {
	if len(tcYX) != t2d.Rows {
		return nil, fmt.Errorf("interp: %d thermocouple positions for %d temperature rows", len(tcYX), t2d.Rows)
	}
	switch m.Kind {
	case Horizontal, Vertical:
		return interp1D(t2d, m, tcYX, topLeft, regionShape)
	case Bilinear:
		return interpBilinear(t2d, m, tcYX, topLeft, regionShape)
	default:
		return nil, fmt.Errorf("interp: unknown interpolation kind %d", m.Kind)
	}
}

// AtPixel returns the temperature history of region pixel pos (row-major
// within the region). The backing row is shared, not copied.
func (f *Field) AtPixel(pos int) []float32 {
	switch f.temps.Rows {
	case f.regionW:
		return f.temps.Row(pos % f.regionW)
	case f.regionH:
		return f.temps.Row(pos / f.regionW)
	default:
		return f.temps.Row(pos)
	}
}

// FrameCount returns the number of frames per series.
func (f *Field) FrameCount() int { return f.temps.Cols }

// SingleFrame materialises frame as a coarse 2D preview: the full region
// view (broadcasting the orthogonal axis for 1D fields), block-averaged
// over previewBlock x previewBlock pixels and vertically flipped into
// physical orientation.
func (f *Field) SingleFrame(frame int) (*grid.Matrix, error) {
	if frame < 0 || frame >= f.temps.Cols {
		return nil, fmt.Errorf("interp: frame %d out of range (%d frames)", frame, f.temps.Cols)
	}
	full := grid.NewMatrix(f.regionH, f.regionW)
	switch f.temps.Rows {
	case f.regionW:
		for r := 0; r < f.regionH; r++ {
			row := full.Row(r)
			for c := 0; c < f.regionW; c++ {
				row[c] = f.temps.At(c, frame)
			}
		}
	case f.regionH:
		for r := 0; r < f.regionH; r++ {
			v := f.temps.At(r, frame)
			row := full.Row(r)
			for c := range row {
				row[c] = v
			}
		}
	case f.regionH * f.regionW:
		for r := 0; r < f.regionH; r++ {
			row := full.Row(r)
			for c := 0; c < f.regionW; c++ {
				row[c] = f.temps.At(r*f.regionW+c, frame)
			}
		}
	default:
		return nil, fmt.Errorf("interp: field with %d rows does not match %dx%d region",
			f.temps.Rows, f.regionH, f.regionW)
	}

	coarse, err := full.BlockMean(previewBlock)
	if err != nil {
		return nil, err
	}
	coarse.FlipRows()
	return coarse, nil
}

// bracket locates the thermocouple pair spanning pos: the smallest adjacent
// index pair whose right coordinate is still above pos, clamped to the last
// pair at the top end.
func bracket(coords []int, pos int) (lo, hi int) {
	lo, hi = 0, 1
	for hi < len(coords)-1 && pos >= coords[hi] {
		lo++
		hi++
	}
	return lo, hi
}

func interp1D(t2d *grid.Matrix, m Method, tcYX [][2]int, topLeft, regionShape [2]int) (*Field, error) {
	if t2d.Rows < 2 {
		return nil, ErrEmptyBracket
	}
	calH, calW := regionShape[0], regionShape[1]
	frames := t2d.Cols

	var interpLen int
	coords := make([]int, len(tcYX))
	switch m.Kind {
	case Horizontal:
		interpLen = calW
		for i, yx := range tcYX {
			coords[i] = yx[1] - topLeft[1]
		}
	case Vertical:
		interpLen = calH
		for i, yx := range tcYX {
			coords[i] = yx[0] - topLeft[0]
		}
	}

	temps := grid.NewMatrix(interpLen, frames)
	parallel.For(interpLen, func(pos int) {
		lo, hi := bracket(coords, pos)
		l, r := coords[lo], coords[hi]
		lt, rt := t2d.Row(lo), t2d.Row(hi)

		p := pos
		if !m.Extrapolate {
			p = clamp(p, l, r)
		}
		wl := float32(r - p)
		wr := float32(p - l)
		inv := 1 / float32(r-l)

		row := temps.Row(pos)
		frame := 0
		for ; frame+lanes < frames; frame += lanes {
			for j := 0; j < lanes; j++ {
				row[frame+j] = (lt[frame+j]*wl + rt[frame+j]*wr) * inv
			}
		}
		for ; frame < frames; frame++ {
			row[frame] = (lt[frame]*wl + rt[frame]*wr) * inv
		}
	})

	return &Field{temps: temps, regionH: calH, regionW: calW}, nil
}

func interpBilinear(t2d *grid.Matrix, m Method, tcYX [][2]int, topLeft, regionShape [2]int) (*Field, error) {
	tcH, tcW := m.TCShape[0], m.TCShape[1]
	if tcH < 2 || tcW < 2 {
		return nil, fmt.Errorf("interp: bilinear needs a grid of at least 2x2 thermocouples, got %dx%d", tcH, tcW)
	}
	if len(tcYX) < tcH*tcW {
		return nil, fmt.Errorf("interp: %d thermocouples cannot fill a %dx%d grid", len(tcYX), tcH, tcW)
	}

	// Axis coordinates come from the first grid row (x) and first grid
	// column (y); the grid is row-major with tcW thermocouples per row.
	tcX := make([]int, tcW)
	for i := 0; i < tcW; i++ {
		tcX[i] = tcYX[i][1] - topLeft[1]
	}
	tcY := make([]int, tcH)
	for i := 0; i < tcH; i++ {
		tcY[i] = tcYX[i*tcW][0] - topLeft[0]
	}

	calH, calW := regionShape[0], regionShape[1]
	frames := t2d.Cols
	pixels := calH * calW
	temps := grid.NewMatrix(pixels, frames)

	parallel.For(pixels, func(pos int) {
		x := pos % calW
		y := pos / calW
		yi0, yi1 := bracket(tcY, y)
		xi0, xi1 := bracket(tcX, x)
		x0, x1 := tcX[xi0], tcX[xi1]
		y0, y1 := tcY[yi0], tcY[yi1]

		t00 := t2d.Row(tcW*yi0 + xi0)
		t01 := t2d.Row(tcW*yi0 + xi1)
		t10 := t2d.Row(tcW*yi1 + xi0)
		t11 := t2d.Row(tcW*yi1 + xi1)

		if !m.Extrapolate {
			x = clamp(x, x0, x1)
			y = clamp(y, y0, y1)
		}
		w00 := float32((x1 - x) * (y1 - y))
		w01 := float32((x - x0) * (y1 - y))
		w10 := float32((x1 - x) * (y - y0))
		w11 := float32((x - x0) * (y - y0))
		inv := 1 / float32((x1-x0)*(y1-y0))

		row := temps.Row(pos)
		frame := 0
		for ; frame+lanes < frames; frame += lanes {
			for j := 0; j < lanes; j++ {
				row[frame+j] = (t00[frame+j]*w00 + t01[frame+j]*w01 +
					t10[frame+j]*w10 + t11[frame+j]*w11) * inv
			}
		}
		for ; frame < frames; frame++ {
			row[frame] = (t00[frame]*w00 + t01[frame]*w01 +
				t10[frame]*w10 + t11[frame]*w11) * inv
		}
	})

	return &Field{temps: temps, regionH: calH, regionW: calW}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
