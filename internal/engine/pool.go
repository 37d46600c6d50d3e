package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// workerCount returns the pool size for a configured worker count.
func workerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	return runtime.NumCPU()
}

// parallelFor calls fn(i) for every i in [0, n) on at most workers
// goroutines and waits for all of them. Each call must only write state
// owned by index i. The first error, or the context error, is returned.
func parallelFor(ctx context.Context, workers, n int, fn func(i int) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(workers))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(i)
		})
	}
	return g.Wait()
}
