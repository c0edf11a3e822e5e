// Package solve inverts the 1D semi-infinite-solid step-response conduction
// model per pixel: given the pixel's peak (color-change) frame and its
// interpolated reference temperature history, Newton iteration recovers the
// convective coefficient h, which converts to a Nusselt number.
package solve

import (
	"fmt"
	"math"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
	"github.com/banshee-data/tlc.report/internal/tlc/interp"
	"github.com/banshee-data/tlc.report/internal/tlc/parallel"
)

// Kind selects the root-finding iteration.
type Kind int

const (
	// NewtonTangent is the plain Newton update.
	NewtonTangent Kind = iota
	// NewtonDamped halves the step until the residual shrinks.
	NewtonDamped
)

// Method selects the iteration and its parameters.
type Method struct {
	Kind Kind `json:"kind"`
	// H0 is the initial convective coefficient guess.
	H0 float32 `json:"h0"`
	// MaxIter bounds the outer iteration count.
	MaxIter int `json:"max_iter"`
}

// DefaultMethod matches the historical defaults: tangent Newton from 50
// with at most 10 steps.
func DefaultMethod() Method {
	return Method{Kind: NewtonTangent, H0: 50, MaxIter: 10}
}

// Params carries the physical constants of one reduction.
type Params struct {
	PeakTemp             float32
	SolidConductivity    float32
	SolidDiffusivity     float32
	CharacteristicLength float32
	AirConductivity      float32
	// Dt is the frame interval, 1/frameRate.
	Dt float32

	Method Method
}

// warmupSamples is how many leading samples form the initial temperature
// T0; pixels whose peak falls inside this window carry no usable history
// and resolve to NaN without solving.
const warmupSamples = 4

// divergenceLimit aborts an iteration whose coefficient runs away.
const divergenceLimit = 10000

// stepTolerance is the convergence threshold on the Newton step, and also
// the damping underflow limit.
const stepTolerance = 1e-3

// lanes is the batch width of the summation loop; the last partial batch
// falls back to scalar arithmetic.
const lanes = 8

// Equation evaluates the residual f(h) and its analytic derivative.
type Equation func(h float32) (f, df float32)

// pointData binds one pixel's inputs to the conduction model.
type pointData struct {
	peakFrame int
	temps     []float32
	params    *Params
}

// equation returns f(h) and f'(h) for the semi-infinite-solid model:
//
//	f(h) = Tw - T0 - sum_{n=1}^{N} (1 - exp(h²at/k²)·erfc(h·sqrt(at)/k)) · (T[n]-T[n-1])
//
// with at = a·dt·(N-n). The derivative is accumulated term by term
// alongside the sum.
func (p pointData) equation(h float32) (f, df float32) {
	k := p.params.SolidConductivity
	a := p.params.SolidDiffusivity
	dt := p.params.Dt
	peak := p.peakFrame

	var t0 float32
	for _, v := range p.temps[:warmupSamples] {
		t0 += v
	}
	t0 /= warmupSamples

	var sum, diffSum [lanes]float32
	frame := 1
	for ; frame+lanes < peak; frame += lanes {
		for j := 0; j < lanes; j++ {
			s, d := conductionTerm(h, k, a, dt, peak, frame+j, p.temps)
			sum[j] += s
			diffSum[j] += d
		}
	}
	var sumS, diffS float32
	for j := 0; j < lanes; j++ {
		sumS += sum[j]
		diffS += diffSum[j]
	}
	for ; frame < peak; frame++ {
		s, d := conductionTerm(h, k, a, dt, peak, frame, p.temps)
		sumS += s
		diffS += d
	}

	return p.params.PeakTemp - t0 - sumS, diffS
}

// conductionTerm evaluates one summand and its h-derivative.
func conductionTerm(h, k, a, dt float32, peak, frame int, temps []float32) (s, d float32) {
	deltaTemp := temps[frame] - temps[frame-1]
	at := float64(a) * float64(dt) * float64(peak-frame)
	hk := float64(h) / float64(k)
	expErfc := math.Exp(hk*hk*at) * math.Erfc(hk*math.Sqrt(at))

	s = (1 - float32(expErfc)) * deltaTemp
	d = -deltaTemp * float32(2*math.Sqrt(at)/(float64(k)*math.Sqrt(math.Pi))-
		2*at*float64(h)*expErfc/(float64(k)*float64(k)))
	return s, d
}

// Iterate runs the configured Newton iteration against eq from the
// configured starting point. It returns NaN on divergence.
func Iterate(m Method, eq Equation) float32 {
	switch m.Kind {
	case NewtonDamped:
		return newtonDamped(m.H0, m.MaxIter, eq)
	default:
		return newtonTangent(m.H0, m.MaxIter, eq)
	}
}

func newtonTangent(h0 float32, maxIter int, eq Equation) float32 {
	h := h0
	for i := 0; i < maxIter; i++ {
		f, df := eq(h)
		next := h - f/df
		if abs32(next) > divergenceLimit {
			return nan32()
		}
		if abs32(next-h) < stepTolerance {
			return next
		}
		h = next
	}
	return h
}

func newtonDamped(h0 float32, maxIter int, eq Equation) float32 {
	h := h0
	f, df := eq(h)
	for i := 0; i < maxIter; i++ {
		lambda := float32(1)
		for {
			next := h - lambda*f/df
			if abs32(next-h) < stepTolerance {
				return next
			}
			nextF, nextDf := eq(next)
			if abs32(nextF) < abs32(f) {
				h, f, df = next, nextF, nextDf
				break
			}
			lambda /= 2
			if lambda < stepTolerance {
				return nan32()
			}
		}
		if abs32(h) > divergenceLimit {
			return nan32()
		}
	}
	return h
}

// NusseltMap solves every region pixel and reshapes the result into the
// region grid, vertically flipped into physical orientation. The mean
// ignores NaN (non-converged or insufficient-history) pixels.
func NusseltMap(peaks []int, field *interp.Field, regionShape [2]int, p Params) (*grid.Matrix, float32, error) {
	calH, calW := regionShape[0], regionShape[1]
	if len(peaks) != calH*calW {
		return nil, 0, fmt.Errorf("solve: %d peak frames for a %dx%d region", len(peaks), calH, calW)
	}
	if p.AirConductivity == 0 {
		return nil, 0, fmt.Errorf("solve: air thermal conductivity must be non-zero")
	}
	nuScale := p.CharacteristicLength / p.AirConductivity

	nus := make([]float32, len(peaks))
	parallel.For(len(peaks), func(pos int) {
		peak := peaks[pos]
		if peak <= warmupSamples {
			nus[pos] = nan32()
			return
		}
		pd := pointData{peakFrame: peak, temps: field.AtPixel(pos), params: &p}
		nus[pos] = Iterate(p.Method, pd.equation) * nuScale
	})

	nu2d, err := grid.FromSlice(nus, calH, calW)
	if err != nil {
		return nil, 0, err
	}
	nu2d.FlipRows()
	return nu2d, nu2d.NaNMean(), nil
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func nan32() float32 { return float32(math.NaN()) }
