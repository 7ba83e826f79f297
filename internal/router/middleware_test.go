package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/platform/internal/auth"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_NoMatchIs404(t *testing.T) {
	table := NewTableFrom(NewTable())
	h := Middleware(table)(okHandler())

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMiddleware_PublicRouteBypassesAuth(t *testing.T) {
	table := NewTableFrom(NewTable())
	h := Middleware(table)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_ProtectedRouteWithoutIdentityIs401(t *testing.T) {
	table := NewTableFrom(NewTable())
	h := Middleware(table)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_WrongRoleIs403(t *testing.T) {
	table := NewTableFrom(NewTable())
	h := Middleware(table)(okHandler())

	id := &auth.Identity{Subject: "bob", Role: auth.RolePublic, ExpiresAt: time.Now().Add(time.Hour)}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req = req.WithContext(auth.NewContext(req.Context(), id))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddleware_CorrectRolePasses(t *testing.T) {
	table := NewTableFrom(NewTable())
	h := Middleware(table)(okHandler())

	id := &auth.Identity{Subject: "bob", Role: auth.RoleCustomer, ExpiresAt: time.Now().Add(time.Hour)}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req = req.WithContext(auth.NewContext(req.Context(), id))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_OwnerOrAdmin(t *testing.T) {
	table := NewTableFrom(NewTable())
	h := Middleware(table)(okHandler())

	owner := &auth.Identity{Subject: "alice", Role: auth.RoleCustomer, ExpiresAt: time.Now().Add(time.Hour)}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/alice", nil)
	req = req.WithContext(auth.NewContext(req.Context(), owner))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "owner may view their own portfolio")

	other := &auth.Identity{Subject: "bob", Role: auth.RoleCustomer, ExpiresAt: time.Now().Add(time.Hour)}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/alice", nil)
	req = req.WithContext(auth.NewContext(req.Context(), other))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code, "a different customer may not view someone else's portfolio")

	admin := &auth.Identity{Subject: "root", Role: auth.RoleAdmin, ExpiresAt: time.Now().Add(time.Hour)}
	req = httptest.NewRequest(http.MethodGet, "/api/v1/portfolio/alice", nil)
	req = req.WithContext(auth.NewContext(req.Context(), admin))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, "admin may view any portfolio")
}

func TestMiddleware_SetsRouteInContext(t *testing.T) {
	table := NewTableFrom(NewTable())
	var captured Route
	var captured2 bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, captured2 = RouteFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(table)(next)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, captured2)
	assert.Equal(t, "health", captured.Name)
}
