// Package monitor renders interactive HTML views of reduction results with
// go-echarts, for eyeballing a run without external plotting tools.
package monitor

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tlc.report/internal/tlc/export"
	"github.com/banshee-data/tlc.report/internal/tlc/grid"
)

// viridis-ish palette, low to high.
var heatColors = []string{
	"#440154", "#482777", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// RenderHeatmapHTML writes an interactive heat map of m to w. Matrix row 0
// renders at the top. NaN cells are omitted, so they show as gaps rather
// than zeros. Pass lo == hi to use the conventional bounds.
func RenderHeatmapHTML(w io.Writer, m *grid.Matrix, title string, lo, hi float64) error {
	if lo == hi {
		lo, hi = export.DefaultBounds(m)
	}
	if !(lo < hi) {
		return fmt.Errorf("monitor: bad color bounds [%g, %g]", lo, hi)
	}

	data := make([]opts.HeatMapData, 0, len(m.Data))
	xAxis := make([]int, m.Cols)
	yAxis := make([]int, m.Rows)
	for c := range xAxis {
		xAxis[c] = c
	}
	for r := range yAxis {
		yAxis[r] = r
	}
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			v := float64(m.At(r, c))
			if math.IsNaN(v) {
				continue
			}
			// echarts y axis grows upward; matrix rows grow downward.
			data = append(data, opts.HeatMapData{Value: [3]interface{}{c, m.Rows - 1 - r, v}})
		}
	}

	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1100px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%dx%d px, %d valid", m.Rows, m.Cols, len(data)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Name: "x (px)"}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Name: "y (px)", Data: yAxis}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			InRange:    &opts.VisualMapInRange{Color: heatColors},
		}),
	)
	hm.SetXAxis(xAxis).AddSeries("field", data)

	if err := hm.Render(w); err != nil {
		return fmt.Errorf("monitor: render heatmap: %w", err)
	}
	return nil
}
