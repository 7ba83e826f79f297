package router

import (
	"net/http"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/auth"
)

type routeCtxKey struct{}

// withRoute attaches the matched Route to ctx so downstream stages
// (breaker, proxy) can read its Downstream/RateClass/CacheTTL.
func withRoute(r *http.Request, route Route) *http.Request {
	return r.WithContext(setRoute(r.Context(), route))
}

// Middleware matches the request against table, enforces the auth/role
// requirement, and passes the resolved Route downstream via context. It
// must run after auth.Middleware has had a chance to populate the
// request's Identity, and before the breaker and proxy stages.
func Middleware(table *Table) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, ok := table.Match(r.Method, r.URL.Path)
			if !ok {
				apierror.Write(w, r, apierror.NotFound("no route matches "+r.Method+" "+r.URL.Path))
				return
			}

			if route.AuthRequired {
				identity := auth.FromContext(r.Context())
				if identity == nil {
					apierror.Write(w, r, apierror.AuthMissing())
					return
				}
				if route.OwnerOrAdmin {
					subject := PathParams(route.PathPattern, r.URL.Path)["subject"]
					if identity.Role != auth.RoleAdmin && identity.Subject != subject {
						apierror.Write(w, r, apierror.Forbidden("not the resource owner"))
						return
					}
				} else if len(route.AllowedRoles) > 0 && !roleAllowed(identity.Role, route.AllowedRoles) {
					apierror.Write(w, r, apierror.Forbidden("role not permitted for this route"))
					return
				}
			}

			next.ServeHTTP(w, withRoute(r, route))
		})
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, a := range allowed {
		if a == role {
			return true
		}
	}
	return false
}
