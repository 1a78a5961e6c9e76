package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := Config{Workers: 4, MinChunk: 8}

	n := 1000
	seen := make([]int32, n)
	For(n, cfg, func(i int) {
		atomic.AddInt32(&seen[i], 1)
	})

	for i, c := range seen {
		if c != 1 {
			t.Fatalf("index %d visited %d times", i, c)
		}
	}
}

func TestRangeCoversInOrder(t *testing.T) {
	for _, cfg := range []Config{Sequential(), {Workers: 3, MinChunk: 1}, DefaultConfig()} {
		n := 10
		var total atomic.Int64
		Range(n, cfg, func(lo, hi int) {
			if lo >= hi || hi > n {
				t.Errorf("bad range [%d, %d)", lo, hi)
			}
			total.Add(int64(hi - lo))
		})
		if total.Load() != int64(n) {
			t.Errorf("workers=%d covered %d items, want %d", cfg.Workers, total.Load(), n)
		}
	}
	Range(0, DefaultConfig(), func(int, int) { t.Error("called for empty range") })
}

func TestForPlanes(t *testing.T) {
	batch, channels := 4, 8
	results := make([][]bool, batch)
	for b := range results {
		results[b] = make([]bool, channels)
	}

	ForPlanes(batch, channels, Config{Workers: 4, MinChunk: 1}, func(b, c int) {
		results[b][c] = true
	})

	for b := 0; b < batch; b++ {
		for c := 0; c < channels; c++ {
			if !results[b][c] {
				t.Errorf("Missing result at [%d][%d]", b, c)
			}
		}
	}
}

func TestPanicReachesCaller(t *testing.T) {
	defer func() {
		if r := recover(); r != "bad item" {
			t.Errorf("recovered %v, want the worker panic", r)
		}
	}()
	For(100, Config{Workers: 4, MinChunk: 1}, func(i int) {
		if i == 57 {
			panic("bad item")
		}
	})
	t.Error("For returned normally")
}
