package analyzer

import (
	"runtime"

	"github.com/sourcegraph/conc/pool"
)

// DefaultWorkers is the worker count used when none is configured.
func DefaultWorkers() int {
	return runtime.NumCPU() * 2
}

// Map applies fn to every item on a bounded worker pool and returns the
// results in input order. Each call writes only its own slot, so workers
// never share mutable state.
// If maxWorkers is <= 0, defaults to 2x NumCPU.
func Map[T, R any](items []T, maxWorkers int, fn func(int, T) R) []R {
	return MapWithProgress(items, maxWorkers, fn, nil)
}

// MapWithProgress is Map with a callback invoked after each item.
func MapWithProgress[T, R any](items []T, maxWorkers int, fn func(int, T) R, onDone func(int)) []R {
	if len(items) == 0 {
		return nil
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultWorkers()
	}

	results := make([]R, len(items))
	p := pool.New().WithMaxGoroutines(maxWorkers)
	for i, item := range items {
		p.Go(func() {
			results[i] = fn(i, item)
			if onDone != nil {
				onDone(i)
			}
		})
	}
	p.Wait()

	return results
}
