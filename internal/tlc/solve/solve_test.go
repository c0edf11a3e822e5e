package solve

import (
	"math"
	"testing"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
	"github.com/banshee-data/tlc.report/internal/tlc/interp"
)

func isNaN(v float32) bool { return math.IsNaN(float64(v)) }

func TestNewtonTangentLinear(t *testing.T) {
	// f(h) = h - 5 with unit derivative: a single tangent step from 0
	// lands on the root.
	calls := 0
	eq := func(h float32) (float32, float32) {
		calls++
		return h - 5, 1
	}
	got := Iterate(Method{Kind: NewtonTangent, H0: 0, MaxIter: 10}, eq)
	if got != 5 {
		t.Errorf("root = %v, want 5", got)
	}
	if calls > 2 {
		t.Errorf("took %d evaluations, want at most 2", calls)
	}
}

func TestNewtonDampedLinear(t *testing.T) {
	eq := func(h float32) (float32, float32) { return h - 5, 1 }
	got := Iterate(Method{Kind: NewtonDamped, H0: 0, MaxIter: 10}, eq)
	if got != 5 {
		t.Errorf("root = %v, want 5", got)
	}
}

func TestNewtonTangentDivergence(t *testing.T) {
	// A huge residual with unit slope throws the iterate past the
	// divergence limit.
	eq := func(h float32) (float32, float32) { return -1e9, 1 }
	got := Iterate(Method{Kind: NewtonTangent, H0: 50, MaxIter: 10}, eq)
	if !isNaN(got) {
		t.Errorf("root = %v, want NaN", got)
	}
}

func TestNewtonDampedUnderflow(t *testing.T) {
	// A residual that never shrinks exhausts the damping factor.
	eq := func(h float32) (float32, float32) { return 1, 1 }
	got := Iterate(Method{Kind: NewtonDamped, H0: 50, MaxIter: 10}, eq)
	if !isNaN(got) {
		t.Errorf("root = %v, want NaN", got)
	}
}

func TestConductionBatchMatchesScalar(t *testing.T) {
	// 25 frames exercises two full batches plus the scalar tail; the
	// batched accumulation must agree with a plain scalar sum.
	temps := make([]float32, 25)
	for i := range temps {
		temps[i] = 20 + 0.5*float32(i)
	}
	p := Params{
		PeakTemp:          40,
		SolidConductivity: 0.2,
		SolidDiffusivity:  1e-7,
		Dt:                0.02,
	}
	pd := pointData{peakFrame: 25, temps: temps, params: &p}

	for _, h := range []float32{10, 100, 1000} {
		f, df := pd.equation(h)

		var t0 float32
		for _, v := range temps[:warmupSamples] {
			t0 += v
		}
		t0 /= warmupSamples
		var sum, diffSum float32
		for frame := 1; frame < 25; frame++ {
			s, d := conductionTerm(h, p.SolidConductivity, p.SolidDiffusivity, p.Dt, 25, frame, temps)
			sum += s
			diffSum += d
		}
		wantF := p.PeakTemp - t0 - sum

		if math.Abs(float64(f-wantF)) > 1e-4 {
			t.Errorf("h=%v: f = %v, want %v", h, f, wantF)
		}
		if math.Abs(float64(df-diffSum)) > 1e-4*math.Abs(float64(diffSum)) {
			t.Errorf("h=%v: df = %v, want %v", h, df, diffSum)
		}
	}
}

// stepField interpolates two identical thermocouple histories with a single
// temperature step onto a regionH x 1 vertical region.
func stepField(t *testing.T, regionH, frames, stepFrame int, base, step float32) *interp.Field {
	t.Helper()
	series := make([]float32, frames)
	for i := range series {
		series[i] = base
		if i >= stepFrame {
			series[i] = base + step
		}
	}
	t2d, err := grid.FromSlice(append(append([]float32{}, series...), series...), 2, frames)
	if err != nil {
		t.Fatal(err)
	}
	field, err := interp.New(t2d, interp.Method{Kind: interp.Vertical},
		[][2]int{{0, 0}, {regionH - 1, 0}}, [2]int{0, 0}, [2]int{regionH, 1})
	if err != nil {
		t.Fatal(err)
	}
	return field
}

func TestNusseltMapSolvesAndFlips(t *testing.T) {
	// Two-pixel column: the first pixel has a usable history, the second
	// peaks inside the warm-up window. After the vertical flip the NaN
	// pixel lands in row 0.
	field := stepField(t, 2, 12, 5, 20, 10)
	p := Params{
		PeakTemp:             20.04,
		SolidConductivity:    0.2,
		SolidDiffusivity:     1e-9,
		CharacteristicLength: 0.01,
		AirConductivity:      0.026,
		Dt:                   0.01,
		Method:               DefaultMethod(),
	}

	nu, mean, err := NusseltMap([]int{10, 3}, field, [2]int{2, 1}, p)
	if err != nil {
		t.Fatal(err)
	}
	if nu.Rows != 2 || nu.Cols != 1 {
		t.Fatalf("shape = %dx%d, want 2x1", nu.Rows, nu.Cols)
	}
	if !isNaN(nu.At(0, 0)) {
		t.Errorf("warm-up pixel = %v after flip, want NaN in row 0", nu.At(0, 0))
	}
	solved := nu.At(1, 0)
	if isNaN(solved) || solved <= 0 {
		t.Fatalf("solved pixel = %v, want a positive Nusselt number", solved)
	}

	// The recovered coefficient must actually satisfy the conduction
	// equation.
	h := solved * p.AirConductivity / p.CharacteristicLength
	pd := pointData{peakFrame: 10, temps: field.AtPixel(0), params: &p}
	if f, _ := pd.equation(h); math.Abs(float64(f)) > 1e-3 {
		t.Errorf("residual at recovered h=%v is %v, want ~0", h, f)
	}

	if mean != solved {
		t.Errorf("mean = %v, want %v (NaN pixel excluded)", mean, solved)
	}
}

func TestNusseltMapDampedAgreesWithTangent(t *testing.T) {
	field := stepField(t, 2, 12, 5, 20, 10)
	p := Params{
		PeakTemp:             20.04,
		SolidConductivity:    0.2,
		SolidDiffusivity:     1e-9,
		CharacteristicLength: 0.01,
		AirConductivity:      0.026,
		Dt:                   0.01,
		Method:               DefaultMethod(),
	}
	_, tangent, err := NusseltMap([]int{10, 10}, field, [2]int{2, 1}, p)
	if err != nil {
		t.Fatal(err)
	}
	p.Method.Kind = NewtonDamped
	_, damped, err := NusseltMap([]int{10, 10}, field, [2]int{2, 1}, p)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(float64(tangent-damped)) > 1e-2*math.Abs(float64(tangent)) {
		t.Errorf("damped mean = %v, tangent mean = %v", damped, tangent)
	}
}

func TestNusseltMapAllWarmup(t *testing.T) {
	field := stepField(t, 2, 12, 5, 20, 10)
	p := Params{
		PeakTemp:             20.04,
		SolidConductivity:    0.2,
		SolidDiffusivity:     1e-9,
		CharacteristicLength: 0.01,
		AirConductivity:      0.026,
		Dt:                   0.01,
		Method:               DefaultMethod(),
	}
	nu, mean, err := NusseltMap([]int{4, 2}, field, [2]int{2, 1}, p)
	if err != nil {
		t.Fatal(err)
	}
	for pos, v := range nu.Data {
		if !isNaN(v) {
			t.Errorf("pixel %d = %v, want NaN", pos, v)
		}
	}
	if !isNaN(mean) {
		t.Errorf("mean = %v, want NaN", mean)
	}
}

func TestNusseltMapErrors(t *testing.T) {
	field := stepField(t, 2, 12, 5, 20, 10)
	p := Params{AirConductivity: 0.026, Method: DefaultMethod()}
	if _, _, err := NusseltMap([]int{10}, field, [2]int{2, 1}, p); err == nil {
		t.Error("expected error for peak count / region shape mismatch")
	}
	p.AirConductivity = 0
	if _, _, err := NusseltMap([]int{10, 10}, field, [2]int{2, 1}, p); err == nil {
		t.Error("expected error for zero air conductivity")
	}
}
