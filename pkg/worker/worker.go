// Package worker runs per-item work on a bounded number of goroutines.
package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every item with at most limit calls in flight and returns
// the results in input order, whatever order the calls finish in. A limit
// below 1 means one worker.
//
// The first error returned by fn cancels the context passed to the remaining
// calls, and Map returns that error. Items that have not started by then are
// not processed.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, index int, item T) (R, error)) ([]R, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]R, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			r, err := fn(gctx, i, item)
			if err != nil {
				return err
			}

			// Each index is written by exactly one goroutine.
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// The parent may have been cancelled between items without any call failing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}

	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
