// Package ratelimit implements the per-identity fixed-window rate limiter:
// one budget per (key, rate class), atomic increment via the coordination
// store, with the standard X-RateLimit-* response headers.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/tradecore/platform/internal/coordination"
)

// Class is a rate budget bucket shared by the routes that name it.
type Class struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Limiter implements fixed-window budgeting over the coordination store.
type Limiter struct {
	store  coordination.Interface
	logger *slog.Logger
}

// New creates a rate Limiter over the coordination store.
func New(store coordination.Interface, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, logger: logger}
}

// Result is the outcome of a single rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetIn   time.Duration
}

// Check performs one atomic increment for (key, class) and classifies the
// request. On a coordination-store failure the limiter fails open (allows
// the request) and logs; a degraded Redis must never take traffic down
// with it.
func (l *Limiter) Check(ctx context.Context, key string, class Class) Result {
	if class.Limit <= 0 {
		return Result{Allowed: true, Limit: class.Limit}
	}

	storeKey := coordination.PrefixRateLimit + class.Name + ":" + key
	count, err := l.store.IncrWithTTL(ctx, storeKey, class.Window)
	if err != nil {
		l.logger.Error("rate limiter store failure, failing open", "key", storeKey, "error", err)
		return Result{Allowed: true, Limit: class.Limit, Remaining: class.Limit}
	}

	remaining := class.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	resetIn := class.Window
	if ttl, err := l.store.TTL(ctx, storeKey); err == nil && ttl > 0 {
		resetIn = ttl
	}

	return Result{
		Allowed:   count <= int64(class.Limit),
		Limit:     class.Limit,
		Remaining: remaining,
		ResetIn:   resetIn,
	}
}

// SetHeaders writes the three standard rate-limit headers onto w. Callers
// on the proxy path must re-apply these after copying the downstream
// response's headers, so the copy cannot clobber them.
func (r Result) SetHeaders(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(r.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(r.Remaining))
	resetSeconds := int(math.Ceil(r.ResetIn.Seconds()))
	if resetSeconds < 1 {
		resetSeconds = 1
	}
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))
}

// Key builds the rate-limiter key: identity subject when authenticated,
// else the source address.
func Key(subject, sourceAddr string) string {
	if subject != "" {
		return fmt.Sprintf("id:%s", subject)
	}
	return fmt.Sprintf("ip:%s", sourceAddr)
}
