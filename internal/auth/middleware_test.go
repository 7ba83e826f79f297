package auth

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

func TestMiddleware_NoHeaderPassesThroughUnauthenticated(t *testing.T) {
	v, err := NewTokenVerifier(testSecret, newFakeDenylist())
	require.NoError(t, err)

	var sawIdentity bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawIdentity = FromContext(r.Context()) != nil
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Middleware(v, discardLogger())(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, sawIdentity)
}

func TestMiddleware_ValidBearerSetsIdentity(t *testing.T) {
	v, err := NewTokenVerifier(testSecret, newFakeDenylist())
	require.NoError(t, err)

	raw, _, err := v.Issue("alice", RoleCustomer, time.Hour)
	require.NoError(t, err)

	var gotSubject string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = FromContext(r.Context()).Subject
		w.WriteHeader(http.StatusOK)
	})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	Middleware(v, discardLogger())(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", gotSubject)
}

func TestMiddleware_ExpiredRejects(t *testing.T) {
	v, err := NewTokenVerifier(testSecret, newFakeDenylist())
	require.NoError(t, err)

	raw, _, err := v.Issue("alice", RoleCustomer, -time.Hour)
	require.NoError(t, err)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	Middleware(v, discardLogger())(next).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
