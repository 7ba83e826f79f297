// Package router implements the path-to-downstream mapping and per-route
// auth/role requirement table.
package router

import "time"

// Route describes one entry in the route table.
type Route struct {
	// Name identifies the route for logging/metrics, e.g. "auth.login".
	Name string
	// Method is the single HTTP method this route matches. Multiple
	// methods on the same path are expressed as separate Route entries.
	Method string
	// PathPattern is a chi-style pattern, e.g. "/api/v1/orders/{id}".
	PathPattern string
	// Downstream names the backend this route forwards to (e.g. "user",
	// "order", "inventory") or "" for gateway-local routes (health,
	// metrics).
	Downstream string
	// AuthRequired, if false, lets the route be called without an
	// Identity. It does not bypass token verification: auth.Middleware
	// runs before routing and rejects a presented bearer token that fails
	// verification on every route.
	AuthRequired bool
	// AllowedRoles is empty when AuthRequired is false. A non-empty set
	// is checked against Identity.Role unless OwnerOrAdmin is set.
	AllowedRoles []string
	// OwnerOrAdmin marks routes like GET /portfolio/{subject} where the
	// caller must either be the admin role or the subject named in the
	// path.
	OwnerOrAdmin bool
	// RateClass keys into the rate budget table (internal/ratelimit).
	RateClass string
	// BreakerEnabled gates whether the circuit breaker wraps calls to the
	// downstream for this
	// route. Gateway-local routes never go through the breaker.
	BreakerEnabled bool
	// CacheTTL is non-zero for idempotent GETs the proxy may answer from
	// its response cache.
	CacheTTL time.Duration
}

// LoginFailureTracked reports whether a 401 response from this route must
// be recorded against the IP block guard; only the login route is.
func (r Route) LoginFailureTracked() bool {
	return r.Downstream == "user" && r.PathPattern == "/api/v1/auth/login"
}
