package parallel

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// chunks splits [0, items) into at most NumCPU contiguous ranges.
func chunks(items int) [][2]int {
	numWorkers := runtime.NumCPU()
	if numWorkers > items {
		numWorkers = items
	}
	chunkSize := (items + numWorkers - 1) / numWorkers

	out := make([][2]int, 0, numWorkers)
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

// Parallelize divides items according to the number of CPU cores and runs
// fn concurrently on each range [start, end).
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	var wg sync.WaitGroup
	for _, c := range chunks(items) {
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(c[0], c[1])
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn(0, items) sequentially when items does
// not exceed threshold and falls back to Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ParallelizeErr is ParallelizeWithThreshold for work that can fail. The
// first error cancels the context handed to the remaining ranges and is
// returned. Ranges that observe ctx.Done() should return ctx.Err().
func ParallelizeErr(ctx context.Context, items int, threshold int, fn func(ctx context.Context, start, end int) error) error {
	if items <= 0 {
		return ctx.Err()
	}
	if items <= threshold {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(ctx, 0, items)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range chunks(items) {
		s, e := c[0], c[1]
		g.Go(func() error {
			return fn(gctx, s, e)
		})
	}
	return g.Wait()
}
