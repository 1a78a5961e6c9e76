// Package parallel splits kernel loops across goroutines.
//
// Work items must write disjoint outputs, so results do not depend on the
// number of workers. A panic in any worker is re-raised on the calling
// goroutine once all workers have stopped.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls how loops are split.
type Config struct {
	Workers  int // Goroutines to use; 1 or less runs on the caller.
	MinChunk int // Minimum items per goroutine.
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{
		Workers:  runtime.NumCPU(),
		MinChunk: 64,
	}
}

// Sequential runs every loop on the calling goroutine.
func Sequential() Config {
	return Config{Workers: 1}
}

// Range calls fn on consecutive sub-ranges [lo, hi) covering [0, n).
func Range(n int, cfg Config, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	chunk := max(cfg.MinChunk, 1)
	if cfg.Workers > 1 {
		chunk = max((n+cfg.Workers-1)/cfg.Workers, chunk)
	}
	if cfg.Workers <= 1 || chunk >= n {
		fn(0, n)
		return
	}

	var (
		wg    sync.WaitGroup
		once  sync.Once
		fault any
	)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { fault = r })
				}
			}()
			fn(lo, hi)
		}()
	}
	wg.Wait()
	if fault != nil {
		panic(fault)
	}
}

// For calls fn(i) for every i in [0, n).
func For(n int, cfg Config, fn func(i int)) {
	Range(n, cfg, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			fn(i)
		}
	})
}

// ForPlanes calls fn(b, c) for every batch and channel pair, the
// iteration pattern of NCHW kernels.
func ForPlanes(batch, channels int, cfg Config, fn func(b, c int)) {
	For(batch*channels, cfg, func(k int) {
		fn(k/channels, k%channels)
	})
}
