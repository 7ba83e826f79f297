package router

import (
	"context"
	"net/http"
)

// setRoute and RouteFromContext thread the matched Route through the
// request context from Middleware to the breaker and proxy stages.
func setRoute(ctx context.Context, route Route) context.Context {
	return context.WithValue(ctx, routeCtxKey{}, route)
}

// RouteFromContext returns the Route matched by Middleware, if any.
func RouteFromContext(ctx context.Context) (Route, bool) {
	route, ok := ctx.Value(routeCtxKey{}).(Route)
	return route, ok
}

// SetRouteForTest attaches route to r's context for use by other packages'
// tests (e.g. internal/proxy) that exercise downstream stages without
// going through Middleware itself.
func SetRouteForTest(r *http.Request, route Route) *http.Request {
	return withRoute(r, route)
}
