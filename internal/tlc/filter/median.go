package filter

// medianFilter replaces each sample with the median of the trailing window
// ending at that sample. The window grows from 1 at the first sample up to
// size, so early samples are medians of what has been seen so far. A window
// of 1 is the identity.
func medianFilter(data []uint8, size int) {
	if size <= 1 {
		return
	}
	f := newStreamingMedian(size)
	for i, v := range data {
		data[i] = f.consume(v)
	}
}

// streamingMedian keeps the last N samples in arrival order (ring) and in
// sorted order (window) so each insert/evict is a small shift rather than a
// re-sort.
type streamingMedian struct {
	ring   []uint8
	window []uint8
	head   int
}

func newStreamingMedian(size int) *streamingMedian {
	return &streamingMedian{
		ring:   make([]uint8, 0, size),
		window: make([]uint8, 0, size),
	}
}

func (s *streamingMedian) consume(v uint8) uint8 {
	if len(s.ring) == cap(s.ring) {
		oldest := s.ring[s.head]
		s.ring[s.head] = v
		s.head = (s.head + 1) % cap(s.ring)
		s.remove(oldest)
	} else {
		s.ring = append(s.ring, v)
	}
	s.insert(v)
	return s.window[(len(s.window)-1)/2]
}

func (s *streamingMedian) insert(v uint8) {
	i := 0
	for i < len(s.window) && s.window[i] < v {
		i++
	}
	s.window = append(s.window, 0)
	copy(s.window[i+1:], s.window[i:])
	s.window[i] = v
}

func (s *streamingMedian) remove(v uint8) {
	for i, w := range s.window {
		if w == v {
			s.window = append(s.window[:i], s.window[i+1:]...)
			return
		}
	}
}
