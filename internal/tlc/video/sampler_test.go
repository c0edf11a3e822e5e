package video

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeSource serves synthetic interleaved BGR payloads where the green byte
// of pixel (y, x) in frame f is f*100 + y*10 + x, so extraction results are
// traceable to their source coordinates.
type fakeSource struct {
	desc    *StreamDesc
	failAt  int   // fail before appending this frame; -1 disables
	failErr error // error used by failAt
	delay   time.Duration
}

func newFakeSource(width, height, frames int) *fakeSource {
	return &fakeSource{
		desc:   &StreamDesc{Path: "fake", Width: width, Height: height, FrameRate: 25, TotalFrames: frames},
		failAt: -1,
	}
}

func (s *fakeSource) Desc() *StreamDesc { return s.desc }

func (s *fakeSource) Stream(cache *PacketCache, count int) {
	for f := 0; f < count; f++ {
		if f == s.failAt {
			cache.Fail(s.failErr)
			return
		}
		if s.delay > 0 {
			time.Sleep(s.delay)
		}
		payload := make([]byte, s.desc.Height*s.desc.RowBytes())
		for y := 0; y < s.desc.Height; y++ {
			for x := 0; x < s.desc.Width; x++ {
				payload[y*s.desc.RowBytes()+x*3+1] = uint8(f*100 + y*10 + x)
			}
		}
		cache.Append(payload)
	}
	cache.Finish()
}

func TestReadIntensityAddressing(t *testing.T) {
	src := newFakeSource(8, 6, 5)
	src.delay = time.Millisecond // force workers to actually wait on the fill
	m, err := NewSampler(src).ReadIntensity(1, 2, [2]int{2, 3}, [2]int{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if m.Rows != 2 || m.Cols != 4 {
		t.Fatalf("shape = %dx%d, want 2x4", m.Rows, m.Cols)
	}
	// Frame startFrame+f, pixel (2+r, 3+c) carries green byte
	// (1+f)*100 + (2+r)*10 + (3+c).
	for f := 0; f < 2; f++ {
		for r := 0; r < 2; r++ {
			for c := 0; c < 2; c++ {
				want := uint8((1+f)*100 + (2+r)*10 + (3 + c))
				if got := m.Data[m.Idx(f, r*2+c)]; got != want {
					t.Errorf("frame %d pixel (%d,%d) = %d, want %d", f, r, c, got, want)
				}
			}
		}
	}
}

func TestReadIntensityShortStream(t *testing.T) {
	src := newFakeSource(8, 6, 10)
	src.desc.TotalFrames = 0 // unknown length, force the fill to discover EOF
	src.failAt = 3
	src.failErr = errors.New("stream ended early")
	_, err := NewSampler(src).ReadIntensity(0, 5, [2]int{0, 0}, [2]int{2, 2})
	if err == nil || !strings.Contains(err.Error(), "stream ended early") {
		t.Errorf("err = %v, want fill failure to surface", err)
	}
}

func TestReadIntensityRangeChecks(t *testing.T) {
	s := NewSampler(newFakeSource(8, 6, 5))
	if _, err := s.ReadIntensity(0, 6, [2]int{0, 0}, [2]int{2, 2}); err == nil {
		t.Error("expected error when frame range exceeds the stream")
	}
	if _, err := s.ReadIntensity(0, 2, [2]int{5, 0}, [2]int{2, 2}); err == nil {
		t.Error("expected error when region exceeds the frame")
	}
	if _, err := s.ReadIntensity(0, 2, [2]int{0, 0}, [2]int{0, 2}); err == nil {
		t.Error("expected error for empty region")
	}
}

func TestReadPayloadWaitsForFrame(t *testing.T) {
	src := newFakeSource(4, 3, 6)
	src.delay = time.Millisecond
	payload, err := NewSampler(src).ReadPayload(4)
	if err != nil {
		t.Fatal(err)
	}
	if len(payload) != 3*4*3 {
		t.Fatalf("payload length = %d, want %d", len(payload), 3*4*3)
	}
	if want := uint8(4 * 100); payload[0*12+0*3+1] != want {
		t.Errorf("green byte = %d, want %d", payload[1], want)
	}
}

func TestPacketCacheWaitBlocksUntilFilled(t *testing.T) {
	cache := NewPacketCache(3)
	var woke sync.WaitGroup
	woke.Add(1)
	errCh := make(chan error, 1)
	go func() {
		woke.Done()
		errCh <- cache.Wait(3)
	}()
	woke.Wait()

	cache.Append([]byte{1})
	cache.Append([]byte{2})
	select {
	case err := <-errCh:
		t.Fatalf("Wait returned %v before the cache was full", err)
	case <-time.After(10 * time.Millisecond):
	}

	cache.Append([]byte{3})
	if err := <-errCh; err != nil {
		t.Fatalf("Wait = %v, want nil", err)
	}
	if cache.Len() != 3 {
		t.Errorf("Len = %d, want 3", cache.Len())
	}
}

func TestPacketCacheFailClearsPayloads(t *testing.T) {
	cache := NewPacketCache(3)
	cache.Append([]byte{1})
	boom := errors.New("demux failed")
	cache.Fail(boom)
	if err := cache.Wait(3); !errors.Is(err, boom) {
		t.Errorf("Wait = %v, want %v", err, boom)
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d after failure, want 0", cache.Len())
	}
	// Late appends must not resurrect a failed cache.
	cache.Append([]byte{2})
	if cache.Len() != 0 {
		t.Errorf("Len = %d after post-failure append, want 0", cache.Len())
	}
}

func TestPacketCacheFinishShortFails(t *testing.T) {
	cache := NewPacketCache(4)
	cache.Append([]byte{1})
	cache.Finish()
	if err := cache.Wait(4); err == nil {
		t.Error("expected error when the fill finishes short of the target")
	}
}

func TestPacketCacheRelease(t *testing.T) {
	cache := NewPacketCache(2)
	cache.Append([]byte{1})
	cache.Release()
	if err := cache.Wait(1); !errors.Is(err, ErrCacheReleased) {
		t.Errorf("Wait = %v, want ErrCacheReleased", err)
	}
}
