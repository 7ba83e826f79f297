package auth

import (
	"net/http"

	"github.com/tradecore/platform/internal/apierror"
)

// RequireAuth rejects requests that have no authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if FromContext(r.Context()) == nil {
			apierror.Write(w, r, apierror.AuthMissing())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that rejects requests whose identity does
// not hold one of the listed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		set[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				apierror.Write(w, r, apierror.AuthMissing())
				return
			}
			if _, ok := set[id.Role]; !ok {
				apierror.Write(w, r, apierror.Forbidden("role not permitted for this route"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinRole returns middleware that rejects requests whose identity has
// a lower privilege level than minRole (e.g. RequireMinRole(RoleCustomer)
// implements the route table's "customer+" requirement).
func RequireMinRole(minRole string) func(http.Handler) http.Handler {
	minLevel := roleLevel[minRole]

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				apierror.Write(w, r, apierror.AuthMissing())
				return
			}
			if roleLevel[id.Role] < minLevel {
				apierror.Write(w, r, apierror.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireOwnerOrAdmin rejects requests unless the authenticated identity's
// subject matches the subject subjectOf returns for the request or the
// identity holds the admin role. Used by GET /portfolio/{subject}.
func RequireOwnerOrAdmin(subjectOf func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := FromContext(r.Context())
			if id == nil {
				apierror.Write(w, r, apierror.AuthMissing())
				return
			}
			if id.Role != RoleAdmin && id.Subject != subjectOf(r) {
				apierror.Write(w, r, apierror.Forbidden("not the resource owner"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
