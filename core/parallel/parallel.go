package parallel

import (
	"runtime"
	"sync"
)

// Parallelize divides the specified total number (items) according to the number of CPU cores,
// and executes the specified function (fn) in parallel for each range (start, end)
func Parallelize(items int, fn func(start, end int)) {
	if items == 0 {
		return
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}

	// ceiling division
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if end > items {
			end = items
		}
		if start >= end {
			continue
		}

		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold performs parallelization only when the number of items exceeds the threshold
// If below threshold, normal sequential processing is performed
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// FilterMap applies fn to every item and keeps the results for which fn
// reports true. The output preserves input order. Work is split across CPU
// cores once len(items) exceeds threshold.
func FilterMap[T, U any](items []T, threshold int, fn func(T) (U, bool)) []U {
	mapped := make([]U, len(items))
	keep := make([]bool, len(items))

	ParallelizeWithThreshold(len(items), threshold, func(start, end int) {
		for i := start; i < end; i++ {
			mapped[i], keep[i] = fn(items[i])
		}
	})

	out := make([]U, 0, len(items))
	for i, ok := range keep {
		if ok {
			out = append(out, mapped[i])
		}
	}
	return out
}
