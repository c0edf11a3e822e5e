package filter

import (
	"math"
	"testing"
)

func TestWaveletPlan(t *testing.T) {
	cases := []struct {
		dataLen   int
		level     int
		filterLen int
	}{
		{14, 0, 0},   // shorter than taps-1: no decomposition
		{15, 0, 15},  // base 1 -> level 0
		{30, 1, 30},  // base 2
		{64, 2, 64},  // base 4
		{100, 2, 100},
		{1000, 6, 960}, // 1000/64*64: 40 tail frames unfiltered
	}
	for _, c := range cases {
		level, filterLen := waveletPlan(c.dataLen)
		if level != c.level || filterLen != c.filterLen {
			t.Errorf("waveletPlan(%d) = (%d, %d), want (%d, %d)",
				c.dataLen, level, filterLen, c.level, c.filterLen)
		}
	}
}

func TestForwardInverseRoundTrip(t *testing.T) {
	const n = 128
	orig := make([]float32, n)
	for i := range orig {
		orig[i] = float32(50 + 40*math.Sin(float64(i)/7) + float64(i%13))
	}
	buf := make([]float32, n)
	copy(buf, orig)

	forward(buf, 3)
	inverse(buf, 3)

	for i := range orig {
		if diff := math.Abs(float64(buf[i] - orig[i])); diff > 1e-3 {
			t.Fatalf("sample %d: round trip drifted by %v", i, diff)
		}
	}
}

func TestWaveletZeroRatioNearIdentity(t *testing.T) {
	// With threshold 0 the transform pair is the only change; bytes may move
	// by at most one count from float truncation.
	data := make([]uint8, 96)
	for i := range data {
		data[i] = uint8(100 + 50*math.Sin(float64(i)/5))
	}
	orig := append([]uint8(nil), data...)

	level, filterLen := waveletPlan(len(data))
	waveletFilter(data, level, filterLen, 0)

	for i := range data {
		diff := int(data[i]) - int(orig[i])
		if diff < -1 || diff > 1 {
			t.Fatalf("sample %d: changed by %d with zero threshold", i, diff)
		}
	}
}

func TestWaveletLeavesTailUnfiltered(t *testing.T) {
	// 70 frames: base 70/15 = 4 -> level 2, filterLen 68; the last 2 frames
	// must come through byte-identical.
	data := make([]uint8, 70)
	for i := range data {
		data[i] = uint8((i * 29) % 240)
	}
	data[68], data[69] = 201, 77

	level, filterLen := waveletPlan(len(data))
	if filterLen != 68 {
		t.Fatalf("filterLen = %d, want 68", filterLen)
	}
	waveletFilter(data, level, filterLen, 0.5)

	if data[68] != 201 || data[69] != 77 {
		t.Errorf("tail = [%d %d], want [201 77] untouched", data[68], data[69])
	}
}

func TestWaveletDenoisesSpike(t *testing.T) {
	// Flat signal with a single spike: aggressive thresholding should pull
	// the spike toward the baseline.
	data := make([]uint8, 64)
	for i := range data {
		data[i] = 100
	}
	data[30] = 220

	level, filterLen := waveletPlan(len(data))
	waveletFilter(data, level, filterLen, 0.9)

	if data[30] > 180 {
		t.Errorf("spike survived filtering at %d", data[30])
	}
}

func TestSoftThreshold(t *testing.T) {
	cases := []struct {
		v, threshold, want float32
	}{
		{5, 2, 3},
		{-5, 2, -3},
		{1, 2, 0},
		{-1, 2, 0},
		{3, 0, 3},
	}
	for _, c := range cases {
		if got := softThreshold(c.v, c.threshold); got != c.want {
			t.Errorf("softThreshold(%v, %v) = %v, want %v", c.v, c.threshold, got, c.want)
		}
	}
}
