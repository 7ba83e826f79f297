package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/tradecore/platform/internal/apierror"
)

// Middleware returns HTTP middleware that authenticates the caller via the
// Authorization: Bearer header and stores the resulting Identity in the
// request context, so later stages can read FromContext(ctx). A request
// without an Authorization header passes through with no Identity; the
// router and RequireAuth/RequireRole decide per route whether that is
// allowed. A header that is present but fails verification (malformed,
// bad signature, expired, revoked) is rejected here with 401 on every
// route, public routes included: this middleware does not know which
// route the request is for.
func Middleware(verifier *TokenVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := verifier.Verify(r.Context(), header)
			if err != nil {
				switch {
				case errors.Is(err, ErrExpired):
					apierror.Write(w, r, apierror.AuthExpired())
				case errors.Is(err, ErrRevoked):
					apierror.Write(w, r, apierror.AuthRevoked())
				case errors.Is(err, ErrMalformed), errors.Is(err, ErrBadSignature):
					apierror.Write(w, r, apierror.AuthInvalid(err.Error()))
				default:
					logger.Error("token verification failed", "error", err)
					apierror.Write(w, r, apierror.AuthInvalid("token could not be verified"))
				}
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), id)))
		})
	}
}
