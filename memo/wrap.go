package memo

import (
	"context"
	"fmt"
)

// Wrap1 returns a memoized version of a one-argument function with the same
// signature, backed by the shared call path. The returned closure is the
// boundary equivalent of a caching decorator: callers use it exactly like
// fn.
func Wrap1[T any, R any](c *Cache, fn func(ctx context.Context, arg T) (R, error)) func(ctx context.Context, arg T) (R, error) {
	return func(ctx context.Context, arg T) (R, error) {
		val, err := c.CallShared(ctx, func(ctx context.Context, _ Args) (any, error) {
			return fn(ctx, arg)
		}, Args{Pos: []any{arg}})
		return assertResult[R](val, err)
	}
}

// Wrap2 is Wrap1 for two-argument functions.
func Wrap2[T any, U any, R any](c *Cache, fn func(ctx context.Context, a T, b U) (R, error)) func(ctx context.Context, a T, b U) (R, error) {
	return func(ctx context.Context, a T, b U) (R, error) {
		val, err := c.CallShared(ctx, func(ctx context.Context, _ Args) (any, error) {
			return fn(ctx, a, b)
		}, Args{Pos: []any{a, b}})
		return assertResult[R](val, err)
	}
}

func assertResult[R any](val any, err error) (R, error) {
	var zero R
	if err != nil {
		return zero, err
	}
	r, ok := val.(R)
	if !ok {
		return zero, fmt.Errorf("%w: got %T", ErrValueType, val)
	}
	return r, nil
}
