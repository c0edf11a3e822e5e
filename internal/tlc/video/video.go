// Package video turns an experiment recording into intensity data. A
// background task demuxes frame payloads sequentially into a PacketCache
// while decode workers, each with its own context, extract the green channel
// of the calculation region.
package video

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// PreviewRatio is the linear downscale factor for preview frames.
const PreviewRatio = 2

// ErrNoVideoStream reports a container without a decodable video stream.
var ErrNoVideoStream = errors.New("video: no video stream")

// StreamDesc describes a video stream. It is immutable after Probe; decode
// contexts are derived from it per worker.
type StreamDesc struct {
	Path        string
	Width       int
	Height      int
	FrameRate   float64
	TotalFrames int
}

// RowBytes is the byte stride of one interleaved 3-channel scanline.
func (d *StreamDesc) RowBytes() int { return d.Width * 3 }

// Probe opens the recording just long enough to read its stream metadata.
func Probe(path string) (*StreamDesc, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("video: open %s: %w", path, err)
	}
	defer vc.Close()

	d := &StreamDesc{
		Path:        path,
		Width:       int(vc.Get(gocv.VideoCaptureFrameWidth)),
		Height:      int(vc.Get(gocv.VideoCaptureFrameHeight)),
		FrameRate:   vc.Get(gocv.VideoCaptureFPS),
		TotalFrames: int(vc.Get(gocv.VideoCaptureFrameCount)),
	}
	if d.Width <= 0 || d.Height <= 0 {
		return nil, fmt.Errorf("video: %s: %w", path, ErrNoVideoStream)
	}
	return d, nil
}

// Source produces frame payloads for a Sampler. The file-backed source
// demuxes with OpenCV; tests substitute synthetic payloads.
type Source interface {
	Desc() *StreamDesc
	// Stream appends payloads for frames [0, count) to the cache in order,
	// then finishes or fails it. It runs on its own goroutine.
	Stream(cache *PacketCache, count int)
}

// FileSource reads payloads from the recording named by its descriptor.
type FileSource struct {
	desc *StreamDesc
}

// OpenFile probes path and returns a file-backed source for it.
func OpenFile(path string) (*FileSource, error) {
	desc, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{desc: desc}, nil
}

func (s *FileSource) Desc() *StreamDesc { return s.desc }

// Stream demuxes the first count frames into cache as interleaved BGR
// payloads. Decode is sequential here; pixel extraction parallelizes
// downstream.
func (s *FileSource) Stream(cache *PacketCache, count int) {
	vc, err := gocv.VideoCaptureFile(s.desc.Path)
	if err != nil {
		cache.Fail(fmt.Errorf("video: open %s: %w", s.desc.Path, err))
		return
	}
	defer vc.Close()

	frame := gocv.NewMat()
	defer frame.Close()
	for i := 0; i < count; i++ {
		if !vc.Read(&frame) || frame.Empty() {
			cache.Fail(fmt.Errorf("video: %s: stream ended at frame %d of %d", s.desc.Path, i, count))
			return
		}
		raw := frame.ToBytes()
		payload := make([]byte, len(raw))
		copy(payload, raw)
		cache.Append(payload)
	}
	cache.Finish()
}

// EncodePreview downscales one payload by PreviewRatio and JPEG-encodes it.
func EncodePreview(payload []byte, desc *StreamDesc) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(desc.Height, desc.Width, gocv.MatTypeCV8UC3, payload)
	if err != nil {
		return nil, fmt.Errorf("video: wrap frame: %w", err)
	}
	defer mat.Close()

	small := gocv.NewMat()
	defer small.Close()
	gocv.Resize(mat, &small, image.Pt(desc.Width/PreviewRatio, desc.Height/PreviewRatio), 0, 0, gocv.InterpolationArea)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, small)
	if err != nil {
		return nil, fmt.Errorf("video: encode preview: %w", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}
