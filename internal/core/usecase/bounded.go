package usecase

import (
	"context"
	"fmt"
	"time"
)

type callResult[T any] struct {
	value T
	err   error
}

// boundedCall waits at most timeout for fn. The call keeps running in the
// background after a timeout; its late result is discarded.
func boundedCall[T any](ctx context.Context, timeout time.Duration, operation string, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	done := make(chan callResult[T], 1)
	go func() {
		defer cancel()
		value, err := fn(callCtx)
		done <- callResult[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-callCtx.Done():
		var zero T
		return zero, fmt.Errorf("%s: gave up after %s: %w", operation, timeout, callCtx.Err())
	}
}
