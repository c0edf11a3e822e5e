package video

import (
	"fmt"

	"github.com/banshee-data/tlc.report/internal/tlc/grid"
	"github.com/banshee-data/tlc.report/internal/tlc/parallel"
)

// RegionGreen copies the green byte of every calculation-region pixel out of
// one interleaved 3-channel payload into dst (row-major, calH*calW bytes).
// The offset arithmetic picks byte 1 of each pixel triple, which is the
// green sample in both BGR and RGB layouts.
func RegionGreen(payload []byte, rowBytes, tlY, tlX, calH, calW int, dst []uint8) {
	for r := 0; r < calH; r++ {
		base := (tlY+r)*rowBytes + tlX*3 + 1
		row := dst[r*calW : (r+1)*calW]
		for c := range row {
			row[c] = payload[base+c*3]
		}
	}
}

// Sampler extracts intensity data from a payload source through a shared
// packet cache.
type Sampler struct {
	src Source
}

func NewSampler(src Source) *Sampler { return &Sampler{src: src} }

// Desc exposes the source's stream descriptor.
func (s *Sampler) Desc() *StreamDesc { return s.src.Desc() }

// ReadIntensity decodes frames [startFrame, startFrame+frameCount) and
// returns the region's green intensity, one row per frame and one column
// per region pixel. The packet cache is released before returning.
func (s *Sampler) ReadIntensity(startFrame, frameCount int, topLeft, regionShape [2]int) (*grid.ByteMatrix, error) {
	desc := s.src.Desc()
	calH, calW := regionShape[0], regionShape[1]
	if err := checkRegion(desc, topLeft, regionShape); err != nil {
		return nil, err
	}
	total := startFrame + frameCount
	if desc.TotalFrames > 0 && total > desc.TotalFrames {
		return nil, fmt.Errorf("video: need %d frames, stream has %d", total, desc.TotalFrames)
	}

	cache := NewPacketCache(total)
	defer cache.Release()
	go s.src.Stream(cache, total)
	if err := cache.Wait(total); err != nil {
		return nil, err
	}

	out := grid.NewByteMatrix(frameCount, calH*calW)
	rowBytes := desc.RowBytes()
	parallel.Chunks(frameCount, func(lo, hi int) {
		// Worker-local loop: each chunk reads disjoint cache entries and
		// writes disjoint output rows.
		for frame := lo; frame < hi; frame++ {
			RegionGreen(cache.Packet(startFrame+frame), rowBytes,
				topLeft[0], topLeft[1], calH, calW, out.Row(frame))
		}
	})
	return out, nil
}

// ReadPayload returns the raw payload of a single frame, for previews.
func (s *Sampler) ReadPayload(frame int) ([]byte, error) {
	desc := s.src.Desc()
	if frame < 0 || (desc.TotalFrames > 0 && frame >= desc.TotalFrames) {
		return nil, fmt.Errorf("video: frame %d out of range [0, %d)", frame, desc.TotalFrames)
	}
	cache := NewPacketCache(frame + 1)
	defer cache.Release()
	go s.src.Stream(cache, frame+1)
	if err := cache.Wait(frame + 1); err != nil {
		return nil, err
	}
	payload := cache.Packet(frame)
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func checkRegion(desc *StreamDesc, topLeft, regionShape [2]int) error {
	tlY, tlX := topLeft[0], topLeft[1]
	calH, calW := regionShape[0], regionShape[1]
	if calH <= 0 || calW <= 0 {
		return fmt.Errorf("video: empty calculation region %dx%d", calH, calW)
	}
	if tlY < 0 || tlX < 0 || tlY+calH > desc.Height || tlX+calW > desc.Width {
		return fmt.Errorf("video: region %dx%d at (%d,%d) exceeds %dx%d frame",
			calH, calW, tlY, tlX, desc.Height, desc.Width)
	}
	return nil
}
