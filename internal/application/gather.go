package application

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Outcome is the settled result of one gathered task.
type Outcome[T any] struct {
	Value T
	Err   error
}

// gather runs fn for every item with at most limit tasks in flight (limit <= 0
// means unbounded) and waits for all of them to settle. A failing or panicking
// task never cancels its siblings; its error is recorded in the outcome at the
// same index as its input.
func gather[I, T any](ctx context.Context, limit int, items []I, fn func(context.Context, I) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			defer func() {
				if v := recover(); v != nil {
					outcomes[i] = Outcome[T]{Err: fmt.Errorf("panic: %v", v)}
				}
			}()

			value, err := fn(ctx, item)
			outcomes[i] = Outcome[T]{Value: value, Err: err}
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}
