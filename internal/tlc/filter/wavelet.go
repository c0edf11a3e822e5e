package filter

import "math"

// Daubechies 8 analysis filter bank (16 taps). The synthesis bank is the
// same pair, applied through the transposed periodized pyramid, which is an
// exact inverse for an orthonormal bank.
var (
	db8Lo = [16]float32{
		-0.00011747678400228192, 0.0006754494059985568,
		-0.0003917403729959771, -0.00487035299301066,
		0.008746094047015655, 0.013981027917015516,
		-0.04408825393106472, -0.01736930100202211,
		0.128747426620186, 0.00047248457399797254,
		-0.2840155429624281, -0.015829105256023893,
		0.5853546836548691, 0.6756307362980128,
		0.3128715909144659, 0.05441584224308161,
	}
	db8Hi = [16]float32{
		-0.05441584224308161, 0.3128715909144659,
		-0.6756307362980128, 0.5853546836548691,
		0.015829105256023893, -0.2840155429624281,
		-0.00047248457399797254, 0.128747426620186,
		0.01736930100202211, -0.04408825393106472,
		-0.013981027917015516, 0.008746094047015655,
		0.00487035299301066, -0.0003917403729959771,
		-0.0006754494059985568, -0.00011747678400228192,
	}
)

const db8Taps = 16

// waveletPlan picks the decomposition depth for a series of dataLen frames
// and the power-of-two-aligned prefix length that the transform covers.
// Frames beyond filterLen are left unfiltered. Depth is the largest L with
// dataLen/(taps-1) >= 2^L; series shorter than taps-1 get depth 0 (no-op).
func waveletPlan(dataLen int) (level, filterLen int) {
	base := dataLen / (db8Taps - 1)
	if base < 1 {
		return 0, 0
	}
	level = int(math.Log2(float64(base)))
	step := 1 << level
	filterLen = dataLen / step * step
	return level, filterLen
}

// waveletFilter denoises the first filterLen samples in place: forward
// periodized DWT to the given level, soft-threshold each detail level at
// max|coefficient| * ratio, inverse transform. The tail beyond filterLen is
// untouched.
func waveletFilter(data []uint8, level, filterLen int, ratio float32) {
	if level < 1 || filterLen < 2 {
		return
	}
	buf := make([]float32, filterLen)
	for i := 0; i < filterLen; i++ {
		buf[i] = float32(data[i])
	}

	forward(buf, level)

	// Detail coefficients of the deepest level start right after the
	// coarsest approximation block and each shallower level doubles.
	start := filterLen >> level
	for l := 0; l < level; l++ {
		end := start << 1
		var m float32
		for _, v := range buf[start:end] {
			if a := abs32(v); a > m {
				m = a
			}
		}
		threshold := m * ratio
		for i := start; i < end; i++ {
			buf[i] = softThreshold(buf[i], threshold)
		}
		start = end
	}

	inverse(buf, level)

	for i := 0; i < filterLen; i++ {
		data[i] = clampByte(buf[i])
	}
}

// forward runs the periodized pyramid: each pass halves the span, leaving
// approximation coefficients in the front half and detail in the back half
// of the current span.
func forward(a []float32, level int) {
	tmp := make([]float32, len(a))
	n := len(a)
	for l := 0; l < level; l++ {
		forwardStep(a[:n], tmp[:n])
		n >>= 1
	}
}

func forwardStep(a, tmp []float32) {
	n := len(a)
	half := n / 2
	for i := 0; i < half; i++ {
		var s, d float32
		for k := 0; k < db8Taps; k++ {
			v := a[(2*i+k)%n]
			s += db8Lo[k] * v
			d += db8Hi[k] * v
		}
		tmp[i] = s
		tmp[half+i] = d
	}
	copy(a, tmp)
}

// inverse undoes forward by transposing each step in reverse order.
func inverse(a []float32, level int) {
	tmp := make([]float32, len(a))
	n := len(a) >> (level - 1)
	for l := 0; l < level; l++ {
		inverseStep(a[:n], tmp[:n])
		n <<= 1
	}
}

func inverseStep(a, tmp []float32) {
	n := len(a)
	half := n / 2
	for i := range tmp {
		tmp[i] = 0
	}
	for i := 0; i < half; i++ {
		s, d := a[i], a[half+i]
		for k := 0; k < db8Taps; k++ {
			tmp[(2*i+k)%n] += db8Lo[k]*s + db8Hi[k]*d
		}
	}
	copy(a, tmp)
}

// softThreshold shrinks v toward zero by threshold, clipping to zero below
// it and preserving sign above it.
func softThreshold(v, threshold float32) float32 {
	a := abs32(v) - threshold
	if a < 0 {
		a = 0
	}
	if v < 0 {
		return -a
	}
	return a
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func clampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
