package ratelimit

import "context"

type ctxKey struct{}

// NewContext stores the rate-limit Result in ctx so the proxy stage can
// re-apply the headers after copying the downstream response.
func NewContext(ctx context.Context, r Result) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext extracts the rate-limit Result from ctx, if any.
func FromContext(ctx context.Context) (Result, bool) {
	r, ok := ctx.Value(ctxKey{}).(Result)
	return r, ok
}
