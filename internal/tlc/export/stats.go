package export

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
)

// Summary describes the valid (non-NaN) cells of a result field.
type Summary struct {
	Valid  int     `json:"valid"`
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Summarize computes NaN-filtered statistics over m. A field with no valid
// cells returns a zero Summary apart from Total.
func Summarize(m *grid.Matrix) Summary {
	valid := make([]float64, 0, len(m.Data))
	for _, v := range m.Data {
		if !math.IsNaN(float64(v)) {
			valid = append(valid, float64(v))
		}
	}
	s := Summary{Valid: len(valid), Total: len(m.Data)}
	if len(valid) == 0 {
		return s
	}
	sort.Float64s(valid)
	s.Mean, s.StdDev = stat.MeanStdDev(valid, nil)
	if len(valid) == 1 {
		s.StdDev = 0
	}
	s.Min = valid[0]
	s.Max = valid[len(valid)-1]
	s.Median = stat.Quantile(0.5, stat.Empirical, valid, nil)
	return s
}
