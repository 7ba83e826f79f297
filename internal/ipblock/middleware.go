package ipblock

import (
	"log/slog"
	"net/http"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/telemetry"
)

// Middleware rejects requests from a blocked source address before any
// other processing. It applies to every route.
func Middleware(g *Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			source := ClientIP(r)

			blocked, err := g.Blocked(r.Context(), source)
			if err != nil {
				// Fail open: an unreachable coordination store must not
				// take the whole gateway down or falsely block a source.
				logger.Error("ip block check failed, failing open", "source", source, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if blocked {
				telemetry.IPBlockRejectionsTotal.Inc()
				apierror.Write(w, r, apierror.IPBlocked("source address is temporarily blocked after repeated failed logins"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
