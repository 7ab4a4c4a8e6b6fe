// Package remote bounds blocking calls to external services with a timeout.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when a remote call does not finish within its budget.
var ErrTimeout = errors.New("remote call timed out")

type result[T any] struct {
	value T
	err   error
}

// Do runs fn with a context limited by timeout. Calls that ignore their
// context are abandoned once the deadline passes; the goroutine finishes on
// its own and its result is dropped. A non-positive timeout disables the limit.
func Do[T any](ctx context.Context, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		value, err := fn(ctx)
		return value, wrapDeadline(ctx, name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		value, err := fn(callCtx)
		done <- result[T]{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, wrapDeadline(callCtx, name, res.err)
	case <-callCtx.Done():
		var zero T
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return zero, fmt.Errorf("%s: %w after %s", name, ErrTimeout, timeout)
		}
		return zero, fmt.Errorf("%s: %w", name, callCtx.Err())
	}
}

// IsFatal reports whether err must abort the surrounding operation instead of
// being absorbed by a per-item fallback.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func wrapDeadline(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) && ctx.Err() != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrTimeout, err)
	}
	return err
}
