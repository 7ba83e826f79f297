package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	t.Run("rejects unauthenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()

		RequireAuth(okHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("passes authenticated", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(NewContext(r.Context(), &Identity{Subject: "alice", Role: RoleCustomer}))
		w := httptest.NewRecorder()

		RequireAuth(okHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole(RoleAdmin, RoleVIP)

	tests := []struct {
		name     string
		role     string
		wantCode int
	}{
		{"admin allowed", RoleAdmin, http.StatusOK},
		{"vip allowed", RoleVIP, http.StatusOK},
		{"customer rejected", RoleCustomer, http.StatusForbidden},
		{"public rejected", RolePublic, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(NewContext(r.Context(), &Identity{Subject: "u", Role: tt.role}))
			w := httptest.NewRecorder()

			mw(okHandler()).ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRequireMinRole(t *testing.T) {
	mw := RequireMinRole(RoleCustomer) // customer or above

	tests := []struct {
		name     string
		role     string
		wantCode int
	}{
		{"admin passes", RoleAdmin, http.StatusOK},
		{"vip passes", RoleVIP, http.StatusOK},
		{"customer passes", RoleCustomer, http.StatusOK},
		{"public rejected", RolePublic, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r = r.WithContext(NewContext(r.Context(), &Identity{Subject: "u", Role: tt.role}))
			w := httptest.NewRecorder()

			mw(okHandler()).ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestRequireMinRole_NoIdentity(t *testing.T) {
	mw := RequireMinRole(RoleCustomer)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	mw(okHandler()).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	subjectOf := func(r *http.Request) string { return "alice" }
	mw := RequireOwnerOrAdmin(subjectOf)

	t.Run("owner allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(NewContext(r.Context(), &Identity{Subject: "alice", Role: RoleCustomer}))
		w := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("admin allowed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(NewContext(r.Context(), &Identity{Subject: "bob", Role: RoleAdmin}))
		w := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("other customer rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(NewContext(r.Context(), &Identity{Subject: "bob", Role: RoleCustomer}))
		w := httptest.NewRecorder()

		mw(okHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
