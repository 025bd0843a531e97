// Package parallel runs independent per-item work across CPU cores.
package parallel

import (
	"runtime"
	"sync"

	"github.com/YuminosukeSato/allocgo/pkg/errors"
)

// Parallelize divides items into contiguous ranges, one per worker, and runs
// fn(start, end) for each range concurrently. It returns when all ranges are
// done. workers <= 0 means runtime.NumCPU().
func Parallelize(items, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > items {
		workers = items // No need for more workers than items
	}

	// ceiling division
	chunkSize := (items + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) on the calling goroutine when
// items <= threshold, and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items, threshold, workers int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, workers, fn)
}

// ForEach calls fn(i) for every i in [0, items) and returns the per-item
// errors in index order. A panic inside fn is recovered and reported as that
// item's error, so one bad item never takes down the batch.
func ForEach(items, threshold, workers int, fn func(i int) error) []error {
	errs := make([]error, items)
	ParallelizeWithThreshold(items, threshold, workers, func(start, end int) {
		for i := start; i < end; i++ {
			i := i
			errs[i] = errors.SafeExecute("parallel.ForEach", func() error {
				return fn(i)
			})
		}
	})
	return errs
}
