package lightcurve

import (
	"context"
	"log/slog"
	"sync"

	"github.com/star/glmag/internal/correction"
)

// sampleJob is a unit of work for the worker pool.
type sampleJob struct {
	index int
}

// sampleResult is the output of a single sample computation.
type sampleResult struct {
	index      int
	sample     DerivedSample
	advisories []correction.Advisory
	err        error
}

// WorkerPool manages a fixed number of goroutines for the per-sample map.
// Samples do not depend on each other, so results are placed by index and the
// output order never depends on scheduling.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// Map runs fn for every index in [0, n) and returns the results in index order.
// If ctx is cancelled, the returned results are incomplete and ctx.Err() is returned.
func (wp *WorkerPool) Map(ctx context.Context, n int, fn func(i int) sampleResult) ([]sampleResult, error) {
	if n == 0 {
		return nil, ctx.Err()
	}

	jobs := make(chan sampleJob, wp.workers*2)
	results := make(chan sampleResult, wp.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < wp.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				r := fn(job.index)
				r.index = job.index
				select {
				case results <- r:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- sampleJob{index: i}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]sampleResult, n)
	var received int
	for r := range results {
		out[r.index] = r
		received++
	}

	if received < n {
		wp.logger.Warn("sample processing cancelled", "completed", received, "total", n)
		return out, ctx.Err()
	}
	return out, nil
}
