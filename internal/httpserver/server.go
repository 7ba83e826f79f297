package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tradecore/platform/internal/version"
)

// ServerConfig holds the parameters NewServer needs, decoupled from any
// mode-specific configuration struct.
type ServerConfig struct {
	CORSAllowedOrigins []string
}

// Server holds the HTTP server dependencies common to every mode (gateway,
// userservice, orderservice, inventoryservice). Domain routes are mounted on
// Router by the caller after NewServer returns.
type Server struct {
	Router  *chi.Mux
	Logger  *slog.Logger
	DB      *pgxpool.Pool // nil for the gateway, which owns no database
	Redis   *redis.Client
	Metrics *prometheus.Registry

	startedAt time.Time
}

// NewServer wires the ambient middleware stack (request ID, access log,
// metrics, panic recovery, CORS) plus the unauthenticated /healthz, /readyz,
// and /metrics endpoints. db may be nil for the gateway process, which has
// no database of its own.
func NewServer(cfg ServerConfig, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		Logger:    logger,
		DB:        db,
		Redis:     rdb,
		Metrics:   metricsReg,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(chimiddleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.Router.Get("/healthz", s.handleHealthz)
	s.Router.Get("/readyz", s.handleReadyz)
	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	Respond(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// handleReadyz checks every backing store this process was given; each
// check is skipped when its field is nil (the gateway wires no database,
// and the inventoryservice no Redis client).
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	type checkResult struct {
		Name   string `json:"name"`
		Status string `json:"status"`
		Error  string `json:"error,omitempty"`
	}

	var checks []checkResult
	allOK := true

	if s.DB != nil {
		if err := s.DB.Ping(ctx); err != nil {
			s.Logger.Error("readiness check: database ping failed", "error", err)
			checks = append(checks, checkResult{Name: "database", Status: "fail", Error: err.Error()})
			allOK = false
		} else {
			checks = append(checks, checkResult{Name: "database", Status: "ok"})
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Ping(ctx).Err(); err != nil {
			s.Logger.Error("readiness check: redis ping failed", "error", err)
			checks = append(checks, checkResult{Name: "redis", Status: "fail", Error: err.Error()})
			allOK = false
		} else {
			checks = append(checks, checkResult{Name: "redis", Status: "ok"})
		}
	}

	status, httpStatus := "ready", http.StatusOK
	if !allOK {
		status, httpStatus = "unavailable", http.StatusServiceUnavailable
	}

	Respond(w, httpStatus, map[string]any{
		"status": status,
		"checks": checks,
	})
}
