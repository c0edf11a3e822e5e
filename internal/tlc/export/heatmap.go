package export

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
)

// DefaultBounds returns the conventional color range for a field: 0.6x to
// 2x its NaN-ignoring mean.
func DefaultBounds(m *grid.Matrix) (lo, hi float64) {
	mean := float64(m.NaNMean())
	return 0.6 * mean, 2 * mean
}

// fieldGrid adapts a matrix to gonum/plot's heat map input. Row 0 of the
// matrix is the top of the rendered image; NaN cells clamp to the lower
// color bound so they render as cold rather than as noise.
type fieldGrid struct {
	m  *grid.Matrix
	lo float64
}

func (g fieldGrid) Dims() (int, int) { return g.m.Cols, g.m.Rows }
func (g fieldGrid) X(c int) float64  { return float64(c) }
func (g fieldGrid) Y(r int) float64  { return float64(r) }

func (g fieldGrid) Z(c, r int) float64 {
	v := float64(g.m.At(g.m.Rows-1-r, c))
	if math.IsNaN(v) {
		return g.lo
	}
	return v
}

// HeatmapPNG renders m as a PNG heat map with the given color bounds.
// Pass lo == hi to use DefaultBounds.
func HeatmapPNG(m *grid.Matrix, title string, lo, hi float64) ([]byte, error) {
	if lo == hi {
		lo, hi = DefaultBounds(m)
	}
	if !(lo < hi) {
		return nil, fmt.Errorf("export: bad color bounds [%g, %g]", lo, hi)
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"

	hm := plotter.NewHeatMap(fieldGrid{m: m, lo: lo}, palette.Heat(256, 1))
	hm.Min = lo
	hm.Max = hi
	p.Add(hm)

	width := max(vg.Length(m.Cols)*vg.Points(4), 4*vg.Inch)
	height := max(vg.Length(m.Rows)*vg.Points(4), 3*vg.Inch)

	var buf bytes.Buffer
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return nil, fmt.Errorf("export: render heatmap: %w", err)
	}
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("export: encode heatmap: %w", err)
	}
	return buf.Bytes(), nil
}

// SaveHeatmapPNG renders m and writes the PNG to path.
func SaveHeatmapPNG(path string, m *grid.Matrix, title string, lo, hi float64) error {
	png, err := HeatmapPNG(m, title, lo, hi)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("export: write %s: %w", path, err)
	}
	return nil
}
