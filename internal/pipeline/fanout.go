package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ItemResult is the outcome of one item of a FanOut.
type ItemResult[R any] struct {
	Index int
	Value R
	Err   error
}

// FanOut runs fn for every item with at most limit calls in flight and returns
// one result per item, in item order regardless of completion order. A failing
// item does not stop the others; its error is recorded in its result. Items not
// yet started when ctx is cancelled get ctx.Err() as their error.
func FanOut[T, R any](ctx context.Context, limit int, items []T, fn func(ctx context.Context, i int, item T) (R, error)) []ItemResult[R] {
	results := make([]ItemResult[R], len(items))
	if len(items) == 0 {
		return results
	}
	if limit <= 0 {
		limit = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		results[i].Index = i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			v, err := fn(gctx, i, item)
			results[i].Value = v
			results[i].Err = err
			return nil
		})
	}
	// Item errors are kept per result, so Wait never reports one.
	_ = g.Wait()

	return results
}
