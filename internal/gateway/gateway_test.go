package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/config"
	"github.com/tradecore/platform/internal/coordination/coordinationtest"
	"github.com/tradecore/platform/internal/telemetry"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type downstreams struct {
	user, order, inventory *httptest.Server
}

func okServer() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
}

// newTestGateway assembles the full pipeline over the in-memory
// coordination fake and httptest downstreams.
func newTestGateway(t *testing.T, store *coordinationtest.Fake, ds downstreams, tune func(*config.Config)) http.Handler {
	t.Helper()

	cfg := &config.Config{
		Mode:                    "gateway",
		TokenSigningKey:         testSigningKey,
		GatewayRateLimit:        1000,
		RateLimitWindow:         time.Minute,
		AuthRateLimit:           1000,
		MutationRateLimit:       1000,
		IPBlockThreshold:        5,
		IPBlockWindow:           24 * time.Hour,
		BreakerFailureThreshold: 5,
		BreakerWindow:           10 * time.Second,
		BreakerCooldown:         time.Minute,
		BreakerProbeCount:       1,
		UserServiceURL:          ds.user.URL,
		OrderServiceURL:         ds.order.URL,
		InventoryServiceURL:     ds.inventory.URL,
	}
	if tune != nil {
		tune(cfg)
	}

	srv, err := build(cfg, discardLogger(), store, nil, telemetry.NewMetricsRegistry())
	require.NoError(t, err)
	return srv
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) apierror.Problem {
	t.Helper()
	var p apierror.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestGateway_PublicRouteBypassesAuth(t *testing.T) {
	inv := okServer()
	defer inv.Close()
	user, order := okServer(), okServer()
	defer user.Close()
	defer order.Close()

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: inv}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_ProtectedRouteWithoutTokenIs401(t *testing.T) {
	inv, user, order := okServer(), okServer(), okServer()
	defer inv.Close()
	defer user.Close()
	defer order.Close()

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: inv}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTH_MISSING", decodeProblem(t, rec).Code)
}

func TestGateway_AuthenticatedRouteForwardsWithValidToken(t *testing.T) {
	inv, user, order := okServer(), okServer(), okServer()
	defer inv.Close()
	defer user.Close()
	defer order.Close()

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: inv}, nil)

	verifier, err := auth.NewTokenVerifier(testSigningKey, nil)
	require.NoError(t, err)
	token, _, err := verifier.Issue("alice", auth.RoleCustomer, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateway_WrongRoleIs403(t *testing.T) {
	inv, user, order := okServer(), okServer(), okServer()
	defer inv.Close()
	defer user.Close()
	defer order.Close()

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: inv}, nil)

	verifier, err := auth.NewTokenVerifier(testSigningKey, nil)
	require.NoError(t, err)
	token, _, err := verifier.Issue("visitor", auth.RolePublic, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PERM_FORBIDDEN", decodeProblem(t, rec).Code)
}

// TestGateway_RateLimitHeaderSequence drives six requests against a
// five-request budget: the first five pass with a descending remaining
// count, the sixth is rejected with remaining zero and a reset within the
// window.
func TestGateway_RateLimitHeaderSequence(t *testing.T) {
	inv, user, order := okServer(), okServer(), okServer()
	defer inv.Close()
	defer user.Close()
	defer order.Close()

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: inv}, func(cfg *config.Config) {
		cfg.GatewayRateLimit = 5
		cfg.RateLimitWindow = time.Minute
	})

	for i := 1; i <= 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets?n="+strconv.Itoa(i), nil)
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"), "request %d", i)
		assert.Equal(t, strconv.Itoa(5-i), rec.Header().Get("X-RateLimit-Remaining"), "request %d", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets?n=6", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	reset, err := strconv.Atoi(rec.Header().Get("X-RateLimit-Reset"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, reset, 1)
	assert.LessOrEqual(t, reset, 60)
	assert.Equal(t, "RATE_LIMITED", decodeProblem(t, rec).Code)
}

// TestGateway_IPBlockAfterFailedLogins exercises the block guard end to
// end: five 401s from the login downstream arm the block, the sixth
// request from the same address is rejected on any path, and clearing
// both keys lifts it.
func TestGateway_IPBlockAfterFailedLogins(t *testing.T) {
	rejectingUser := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer rejectingUser.Close()
	inv, order := okServer(), okServer()
	defer inv.Close()
	defer order.Close()

	store := coordinationtest.New()
	gw := newTestGateway(t, store, downstreams{user: rejectingUser, order: order, inventory: inv}, nil)

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code, "failed login %d", i+1)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	p := decodeProblem(t, rec)
	assert.Equal(t, "IP_BLOCKED", p.Code)
	assert.True(t, strings.HasSuffix(p.Type, "/authentication-error"), "type = %s", p.Type)
	assert.Contains(t, strings.ToLower(p.Detail), "block")

	// Operators clear both keys to lift the block; the source address of
	// httptest requests is fixed, so these are the keys the guard wrote.
	ctx := req.Context()
	require.NoError(t, store.Delete(ctx, "ip_block:192.0.2.1"))
	require.NoError(t, store.Delete(ctx, "login_fail:192.0.2.1"))

	rec = httptest.NewRecorder()
	gw.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestGateway_BreakerShortCircuitsAfterConsecutiveFailures kills the
// inventory downstream: five transport failures surface as 502, then the
// breaker opens and the sixth request short-circuits with 503 without
// touching the network.
func TestGateway_BreakerShortCircuitsAfterConsecutiveFailures(t *testing.T) {
	user, order := okServer(), okServer()
	defer user.Close()
	defer order.Close()
	deadInventory := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadInventory.Close() // nothing listens at its URL anymore

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: deadInventory}, nil)

	for i := 1; i <= 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets?n="+strconv.Itoa(i), nil)
		rec := httptest.NewRecorder()
		gw.ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadGateway, rec.Code, "request %d should fail through to the dead downstream", i)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/inventory/assets?n=6", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SERVICE_UNAVAILABLE", decodeProblem(t, rec).Code)
}

func TestGateway_UnmatchedRouteIs404(t *testing.T) {
	inv, user, order := okServer(), okServer(), okServer()
	defer inv.Close()
	defer user.Close()
	defer order.Close()

	gw := newTestGateway(t, coordinationtest.New(), downstreams{user: user, order: order, inventory: inv}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	gw.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
