package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/breaker"
	"github.com/tradecore/platform/internal/ratelimit"
	"github.com/tradecore/platform/internal/router"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, downstream *httptest.Server) *Engine {
	t.Helper()
	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 5, Window: time.Second, Cooldown: time.Minute, ProbeCount: 1})
	e, err := NewEngine(map[string]string{"inventory": downstream.URL}, reg, discardLogger())
	require.NoError(t, err)
	return e
}

func TestEngine_InjectsIdentityAndRequestIDHeaders(t *testing.T) {
	var gotSubject, gotRole, gotReqID string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSubject = r.Header.Get("X-User-Subject")
		gotRole = r.Header.Get("X-User-Role")
		gotReqID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer downstream.Close()

	e := newTestEngine(t, downstream)
	route := router.Route{Downstream: "inventory", Method: "GET", PathPattern: "/x"}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	id := &auth.Identity{Subject: "alice", Role: auth.RoleCustomer}
	req = req.WithContext(auth.NewContext(req.Context(), id))
	req = routeInContext(req, route)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", gotSubject)
	assert.Equal(t, "customer", gotRole)
	assert.NotEmpty(t, gotReqID)
}

func TestEngine_PreservesCallerRequestID(t *testing.T) {
	var gotReqID string
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReqID = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}))
	defer downstream.Close()

	e := newTestEngine(t, downstream)
	route := router.Route{Downstream: "inventory", Method: "GET", PathPattern: "/x"}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "caller-supplied-id")
	req = routeInContext(req, route)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, "caller-supplied-id", gotReqID)
}

func TestEngine_ReappliesRateLimitHeadersAfterCopy(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "clobbered")
		w.WriteHeader(http.StatusOK)
	}))
	defer downstream.Close()

	e := newTestEngine(t, downstream)
	route := router.Route{Downstream: "inventory", Method: "GET", PathPattern: "/x"}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = routeInContext(req, route)
	req = req.WithContext(ratelimit.NewContext(req.Context(), ratelimit.Result{Allowed: true, Limit: 5, Remaining: 3, ResetIn: 30 * time.Second}))
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestEngine_RecordsBreakerFailureOn5xx(t *testing.T) {
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer downstream.Close()

	reg := breaker.NewRegistry(breaker.Config{FailureThreshold: 1, Window: time.Second, Cooldown: time.Minute, ProbeCount: 1})
	e, err := NewEngine(map[string]string{"inventory": downstream.URL}, reg, discardLogger())
	require.NoError(t, err)

	route := router.Route{Downstream: "inventory", Method: "GET", PathPattern: "/x", BreakerEnabled: true}
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req = routeInContext(req, route)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, breaker.Open, reg.Get("inventory").CurrentState())
}

func TestEngine_CachesIdempotentGet(t *testing.T) {
	calls := 0
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("payload"))
	}))
	defer downstream.Close()

	e := newTestEngine(t, downstream)
	route := router.Route{Downstream: "inventory", Method: "GET", PathPattern: "/x", CacheTTL: time.Minute}

	req1 := routeInContext(httptest.NewRequest(http.MethodGet, "/x", nil), route)
	rec1 := httptest.NewRecorder()
	e.ServeHTTP(rec1, req1)

	req2 := routeInContext(httptest.NewRequest(http.MethodGet, "/x", nil), route)
	rec2 := httptest.NewRecorder()
	e.ServeHTTP(rec2, req2)

	assert.Equal(t, 1, calls, "second request must be served from cache")
	assert.Equal(t, "HIT", rec2.Header().Get("X-Cache"))
	assert.Equal(t, "payload", rec2.Body.String())
}

func routeInContext(r *http.Request, route router.Route) *http.Request {
	return router.SetRouteForTest(r, route)
}
