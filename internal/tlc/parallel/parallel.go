// Package parallel provides the fork-join helpers used for data-parallel
// passes over the pixel and line axes. Work is partitioned into contiguous
// chunks across a fixed-size worker set; partitions are independent and no
// ordering is guaranteed between them.
package parallel

import (
	"runtime"
	"sync"
)

// Chunks splits [0, n) into one contiguous range per worker and runs fn on
// each range concurrently. fn receives the half-open range [lo, hi).
// Workers defaults to GOMAXPROCS; a worker-local state (such as a decode
// context) can be allocated once per fn call.
func Chunks(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			fn(lo, hi)
		}(lo, hi)
	}
	wg.Wait()
}

// For runs fn for every index in [0, n) using Chunks partitioning.
func For(n int, fn func(i int)) {
	Chunks(n, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}
