package solver

import "sync"

// JobSystem runs the parallel phases of a step. fn is called on disjoint [start, end) ranges
// covering [0, count) and ParallelFor returns once every range is done.
type JobSystem interface {
	ParallelFor(name string, count int, fn func(start, end int))
}

// InlineJobs fans out over plain goroutines, one chunk per worker
type InlineJobs struct {
	Workers int
}

func (j InlineJobs) ParallelFor(name string, count int, fn func(start, end int)) {
	workers := max(1, j.Workers)
	if count <= 0 {
		return
	}
	if workers == 1 || count == 1 {
		fn(0, count)
		return
	}

	chunkSize := (count + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < count; start += chunkSize {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, min(start+chunkSize, count))
	}
	wg.Wait()
}

// forEach runs fn for every element of data through the job system
func forEach[T any](jobs JobSystem, name string, data []T, fn func(T)) {
	jobs.ParallelFor(name, len(data), func(start, end int) {
		for i := start; i < end; i++ {
			fn(data[i])
		}
	})
}
