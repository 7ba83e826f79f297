package ratelimit

import (
	"net/http"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/telemetry"
)

// ClassOf resolves the rate class budget that applies to a request. The
// gateway supplies this from the matched Route's RateClass field.
type ClassOf func(r *http.Request) Class

// ClientAddr extracts the source address used as the rate-limit key when no
// identity is present.
type ClientAddr func(r *http.Request) string

// Middleware returns HTTP middleware that enforces the rate limit for the
// matched route's class and attaches the X-RateLimit-* headers. The proxy
// stage re-applies the headers after copying the downstream response (see
// internal/proxy), so a downstream cannot clobber them.
func Middleware(l *Limiter, classOf ClassOf, clientAddr ClientAddr) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			class := classOf(r)

			var subject string
			if id := auth.FromContext(r.Context()); id != nil {
				subject = id.Subject
			}
			key := Key(subject, clientAddr(r))

			result := l.Check(r.Context(), key, class)
			result.SetHeaders(w)

			ctx := NewContext(r.Context(), result)
			r = r.WithContext(ctx)

			if !result.Allowed {
				telemetry.RateLimitRejectionsTotal.WithLabelValues(class.Name).Inc()
				apierror.Write(w, r, apierror.RateLimited())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
