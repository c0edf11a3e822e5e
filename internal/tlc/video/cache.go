package video

import (
	"errors"
	"fmt"
	"sync"
)

// ErrCacheReleased reports a wait on a cache whose payloads were already
// freed.
var ErrCacheReleased = errors.New("video: packet cache released")

// PacketCache is a bounded, append-only sequence of demuxed frame payloads.
// One background task appends in stream order while any number of decode
// workers wait for the prefix they need. A fill error poisons the cache and
// clears every payload, so no partial state escapes to readers.
type PacketCache struct {
	mu       sync.Mutex
	cond     *sync.Cond
	payloads [][]byte
	target   int
	done     bool
	released bool
	err      error
}

// NewPacketCache returns a cache expecting target payloads.
func NewPacketCache(target int) *PacketCache {
	c := &PacketCache{target: target}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Target is the number of payloads the fill task was asked for.
func (c *PacketCache) Target() int { return c.target }

// Append adds the next payload in stream order. Appends past the target or
// after release are dropped.
func (c *PacketCache) Append(payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.done || c.err != nil || len(c.payloads) >= c.target {
		return
	}
	c.payloads = append(c.payloads, payload)
	c.cond.Broadcast()
}

// Finish marks the fill complete. Finishing short of the target fails the
// cache.
func (c *PacketCache) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.err != nil {
		return
	}
	if len(c.payloads) < c.target {
		c.failLocked(fmt.Errorf("video: stream ended after %d of %d frames", len(c.payloads), c.target))
		return
	}
	c.done = true
	c.cond.Broadcast()
}

// Fail poisons the cache and discards everything cached so far.
func (c *PacketCache) Fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released || c.err != nil {
		return
	}
	c.failLocked(err)
}

func (c *PacketCache) failLocked(err error) {
	c.err = err
	c.payloads = nil
	c.cond.Broadcast()
}

// Wait blocks until at least n payloads are cached, then returns nil. It
// returns the fill error if the cache failed first.
func (c *PacketCache) Wait(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		switch {
		case c.err != nil:
			return c.err
		case c.released:
			return ErrCacheReleased
		case len(c.payloads) >= n:
			return nil
		}
		c.cond.Wait()
	}
}

// Packet returns payload i. The caller must have Wait()ed past i.
func (c *PacketCache) Packet(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloads[i]
}

// Len is the number of payloads cached so far.
func (c *PacketCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

// Release frees every payload and wakes all waiters. The cache is unusable
// afterwards.
func (c *PacketCache) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.payloads = nil
	c.cond.Broadcast()
}
