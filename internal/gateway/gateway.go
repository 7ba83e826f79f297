// Package gateway assembles the coordination components into the HTTP
// pipeline: IP block guard, then auth, then router, then rate limiter,
// then circuit breaker admission (inside the proxy engine), then the
// proxy engine itself.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/breaker"
	"github.com/tradecore/platform/internal/config"
	"github.com/tradecore/platform/internal/coordination"
	"github.com/tradecore/platform/internal/httpserver"
	"github.com/tradecore/platform/internal/ipblock"
	"github.com/tradecore/platform/internal/proxy"
	"github.com/tradecore/platform/internal/ratelimit"
	"github.com/tradecore/platform/internal/router"
	"github.com/tradecore/platform/internal/version"
)

// denylistAdapter adapts the coordination store to auth.Denylist.
type denylistAdapter struct {
	store coordination.Interface
}

func (d denylistAdapter) Contains(ctx context.Context, fingerprint string) (bool, error) {
	return d.store.Exists(ctx, coordination.PrefixDenylist+fingerprint)
}

func (d denylistAdapter) Add(ctx context.Context, fingerprint string, ttl time.Duration) error {
	return d.store.SetWithTTL(ctx, coordination.PrefixDenylist+fingerprint, "1", ttl)
}

// rateClasses maps Route.RateClass names to the configured budgets.
func rateClasses(cfg *config.Config) map[string]ratelimit.Class {
	return map[string]ratelimit.Class{
		"default":  {Name: "default", Limit: cfg.GatewayRateLimit, Window: cfg.RateLimitWindow},
		"auth":     {Name: "auth", Limit: cfg.AuthRateLimit, Window: cfg.RateLimitWindow},
		"mutation": {Name: "mutation", Limit: cfg.MutationRateLimit, Window: cfg.RateLimitWindow},
	}
}

// New builds the gateway's *httpserver.Server with the full request
// pipeline mounted, ready to ListenAndServe.
func New(cfg *config.Config, logger *slog.Logger, rdb *redis.Client, metricsReg *prometheus.Registry) (*httpserver.Server, error) {
	return build(cfg, logger, coordination.New(rdb), rdb, metricsReg)
}

// build assembles the pipeline over any coordination.Interface, so tests
// can drive the full stack against the in-memory fake.
func build(cfg *config.Config, logger *slog.Logger, store coordination.Interface, rdb *redis.Client, metricsReg *prometheus.Registry) (*httpserver.Server, error) {
	verifier, err := auth.NewTokenVerifier(cfg.TokenSigningKey, denylistAdapter{store: store})
	if err != nil {
		return nil, err
	}

	guard := ipblock.New(store, cfg.IPBlockThreshold, cfg.IPBlockWindow)
	limiter := ratelimit.New(store, logger)
	classes := rateClasses(cfg)

	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: cfg.BreakerFailureThreshold,
		Window:           cfg.BreakerWindow,
		Cooldown:         cfg.BreakerCooldown,
		ProbeCount:       cfg.BreakerProbeCount,
	})

	table := router.NewTableFrom(router.NewTable())

	engine, err := proxy.NewEngine(cfg.DownstreamURLs(), breakers, logger)
	if err != nil {
		return nil, err
	}

	srv := httpserver.NewServer(httpserver.ServerConfig{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, nil, rdb, metricsReg)

	classOf := ratelimit.ClassOf(func(r *http.Request) ratelimit.Class {
		route, ok := router.RouteFromContext(r.Context())
		if !ok {
			return classes["default"]
		}
		if c, ok := classes[route.RateClass]; ok {
			return c
		}
		return classes["default"]
	})

	// Build the pipeline from innermost (engine) outward. Router must run
	// before the rate limiter: the limiter's classOf reads the matched
	// Route's RateClass out of the request context, which router.Middleware
	// populates.
	var final http.Handler = loginFailureTracker(guard, logger, engine)
	final = ratelimit.Middleware(limiter, classOf, ipblock.ClientIP)(final)
	final = router.Middleware(table)(final)
	final = auth.Middleware(verifier, logger)(final)
	final = ipblock.Middleware(guard, logger)(final)

	srv.Router.Handle("/api/v1/*", final)
	srv.Router.Get("/health", healthHandler)

	return srv, nil
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	httpserver.Respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// loginFailureTracker wraps the proxy engine to record a failed login
// against the IP block guard when the login route answers 401. Every
// other route passes straight through to the engine.
func loginFailureTracker(guard *ipblock.Guard, logger *slog.Logger, engine *proxy.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := router.RouteFromContext(r.Context())
		if !ok || !route.LoginFailureTracked() {
			engine.ServeHTTP(w, r)
			return
		}

		capture := &statusCapture{ResponseWriter: w, status: http.StatusOK}
		engine.ServeHTTP(capture, r)

		if capture.status == http.StatusUnauthorized {
			source := ipblock.ClientIP(r)
			if err := guard.RecordFailure(r.Context(), source); err != nil {
				logger.Error("recording login failure", "source", source, "error", err)
			}
		}
	})
}

type statusCapture struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (c *statusCapture) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}
