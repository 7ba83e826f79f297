// Package reqid carries the per-request X-Request-ID through the context.
// It is factored out of internal/httpserver so internal/apierror can stamp
// the RFC-7807 "instance" field without importing the server package.
package reqid

import "context"

type ctxKey struct{}

// NewContext stores the request ID in ctx.
func NewContext(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the request ID from ctx, or "" if unset.
func FromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}
