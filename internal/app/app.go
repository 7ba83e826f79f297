// Package app wires configuration, infrastructure, and the per-mode HTTP
// surface together and runs the resulting server until ctx is cancelled.
// One binary hosts every mode: gateway, userservice (identity issuance
// and the balance ledger endpoints), orderservice (order commit), and
// inventoryservice (the public read-only asset catalog).
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/config"
	"github.com/tradecore/platform/internal/coordination"
	"github.com/tradecore/platform/internal/gateway"
	"github.com/tradecore/platform/internal/httpserver"
	"github.com/tradecore/platform/internal/lock"
	"github.com/tradecore/platform/internal/platform"
	"github.com/tradecore/platform/internal/seed"
	"github.com/tradecore/platform/internal/telemetry"
	"github.com/tradecore/platform/pkg/ledger"
	"github.com/tradecore/platform/pkg/orders"
	"github.com/tradecore/platform/services/inventoryservice"
	"github.com/tradecore/platform/services/orderservice"
	"github.com/tradecore/platform/services/userservice"
)

// Run reads cfg and starts the mode it selects. It blocks until ctx is
// cancelled or the server reports a fatal error.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting platform", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	switch cfg.Mode {
	case "gateway":
		return runGateway(ctx, cfg, logger)
	case "userservice":
		return runUserService(ctx, cfg, logger)
	case "orderservice":
		return runOrderService(ctx, cfg, logger)
	case "inventoryservice":
		return runInventoryService(ctx, cfg, logger)
	case "seed":
		return runSeed(ctx, cfg, logger)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer closeRedis(rdb, logger)

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	srv, err := gateway.New(cfg, logger, rdb, metricsReg)
	if err != nil {
		return fmt.Errorf("building gateway: %w", err)
	}

	return serve(ctx, cfg, logger, srv)
}

func runUserService(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, rdb, metricsReg, err := connectInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer closeRedis(rdb, logger)

	store := coordination.New(rdb)
	locks := lock.New(store)
	led := ledger.New(ledger.NewPgxDB(db), locks).WithLockTimeouts(cfg.LockTTL, cfg.LockWaitMax)
	verifier, err := auth.NewTokenVerifier(cfg.TokenSigningKey, coordination.NewDenylist(store))
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}

	userStore := userservice.NewStore(db)
	userSvc := userservice.NewService(userStore, led, verifier, cfg.TokenTTL)
	handler := userservice.NewHandler(logger, userSvc)

	srv := httpserver.NewServer(httpserver.ServerConfig{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, db, rdb, metricsReg)
	srv.Router.With(auth.Middleware(verifier, logger)).Mount("/", handler.Routes())

	return serve(ctx, cfg, logger, srv)
}

func runOrderService(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, rdb, metricsReg, err := connectInfra(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer closeRedis(rdb, logger)

	store := coordination.New(rdb)
	locks := lock.New(store)
	led := ledger.New(ledger.NewPgxDB(db), locks).WithLockTimeouts(cfg.LockTTL, cfg.LockWaitMax)
	verifier, err := auth.NewTokenVerifier(cfg.TokenSigningKey, coordination.NewDenylist(store))
	if err != nil {
		return fmt.Errorf("creating token verifier: %w", err)
	}

	orderCore := orders.New(ledger.NewPgxDB(db), locks, led)
	orderSvc := orderservice.NewService(db, orderCore)
	handler := orderservice.NewHandler(logger, orderSvc)

	srv := httpserver.NewServer(httpserver.ServerConfig{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, db, rdb, metricsReg)
	srv.Router.With(auth.Middleware(verifier, logger)).Mount("/", handler.Routes())

	return serve(ctx, cfg, logger, srv)
}

func runInventoryService(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	invStore := inventoryservice.NewStore(db)
	invSvc := inventoryservice.NewService(invStore)
	handler := inventoryservice.NewHandler(logger, invSvc)

	srv := httpserver.NewServer(httpserver.ServerConfig{CORSAllowedOrigins: cfg.CORSAllowedOrigins}, logger, db, nil, metricsReg)
	srv.Router.Mount("/", handler.Routes())

	return serve(ctx, cfg, logger, srv)
}

func runSeed(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return seed.RunDemo(ctx, db, logger)
}

// connectInfra is the common Postgres+Redis+migrations+metrics bootstrap
// shared by every service mode that owns a database (userservice,
// orderservice). The gateway and inventoryservice each use a subset of
// this directly since they own neither or only one of the two stores.
func connectInfra(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, *redis.Client, *prometheus.Registry, error) {
	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("connecting to redis: %w", err)
	}

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)
	return db, rdb, metricsReg, nil
}

// serve runs srv on cfg.ListenAddr() until ctx is cancelled, then shuts
// down gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, handler http.Handler) error {
	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr(), "mode", cfg.Mode)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", "mode", cfg.Mode)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func closeRedis(rdb *redis.Client, logger *slog.Logger) {
	if err := rdb.Close(); err != nil {
		logger.Error("closing redis", "error", err)
	}
}
