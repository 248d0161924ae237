package nn

import (
	"runtime"
	"sync"

	"github.com/klauspost/cpuid/v2"
)

// Workers bounds the goroutines used for per-sample work within a batch.
var Workers = defaultWorkers()

func defaultWorkers() int {
	n := cpuid.CPU.PhysicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return n
}

// ForEach executes body for 0..length-1 with at most limit concurrent
// goroutines. Bodies must write to disjoint memory.
func ForEach(length, limit int, body func(i int)) {
	if length <= 0 {
		return
	}
	if limit <= 1 || length == 1 {
		for i := 0; i < length; i++ {
			body(i)
		}
		return
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	wg.Add(length)

	for i := 0; i < length; i++ {
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			body(i)
		}(i)
	}

	wg.Wait()
}

// ForChunks splits [0, n) into at most Workers contiguous ranges and runs
// body on each range concurrently.
func ForChunks(n int, body func(lo, hi int)) {
	chunks := min(Workers, n)
	if chunks <= 1 {
		body(0, n)
		return
	}
	size := (n + chunks - 1) / chunks
	ForEach(chunks, chunks, func(c int) {
		lo := c * size
		hi := min(lo+size, n)
		if lo < hi {
			body(lo, hi)
		}
	})
}
