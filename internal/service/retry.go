package service

import (
	"context"
	"errors"

	"github.com/Harshitk-cp/credo/internal/domain"
)

// RetryOnConcurrency runs fn and, if it fails with domain.ErrConcurrency, runs
// it exactly once more. fn must re-read whatever state it depends on.
func RetryOnConcurrency[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	v, err := fn(ctx)
	if !errors.Is(err, domain.ErrConcurrency) {
		return v, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		var zero T
		return zero, ctxErr
	}
	return fn(ctx)
}
