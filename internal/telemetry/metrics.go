package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradecore/platform/internal/breaker"
	"github.com/tradecore/platform/internal/httpserver"
)

var RateLimitRejectionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "ratelimit",
		Name:      "rejections_total",
		Help:      "Total number of requests rejected by the rate limiter, by class.",
	},
	[]string{"class"},
)

var IPBlocksTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "ipblock",
		Name:      "blocks_total",
		Help:      "Total number of source addresses blocked after repeated login failures.",
	},
)

var IPBlockRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "ipblock",
		Name:      "rejections_total",
		Help:      "Total number of requests rejected because the source address is blocked.",
	},
)

// Lock metrics carry no per-name label: lock names embed the subject, and
// an unbounded label set would blow up the series cardinality.
var LockWaitDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "platform",
		Subsystem: "lock",
		Name:      "wait_duration_seconds",
		Help:      "Time spent waiting to acquire a distributed lock.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	},
)

var LockTimeoutsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "lock",
		Name:      "timeouts_total",
		Help:      "Total number of lock acquisitions that exceeded wait_max.",
	},
)

var ProxyRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "platform",
		Subsystem: "proxy",
		Name:      "request_duration_seconds",
		Help:      "Downstream proxy round-trip duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	[]string{"downstream", "status_class"},
)

var LedgerTransactionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "ledger",
		Name:      "transactions_total",
		Help:      "Total number of balance ledger transactions by kind and status.",
	},
	[]string{"kind", "status"},
)

var OrdersCommittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "orders",
		Name:      "committed_total",
		Help:      "Total number of orders committed by status.",
	},
	[]string{"status"},
)

// All returns every platform-specific metric for registration with the
// process's Prometheus registry.
func All() []prometheus.Collector {
	collectors := []prometheus.Collector{
		RateLimitRejectionsTotal,
		IPBlocksTotal,
		IPBlockRejectionsTotal,
		LockWaitDuration,
		LockTimeoutsTotal,
		ProxyRequestDuration,
		LedgerTransactionsTotal,
		OrdersCommittedTotal,
		breaker.StateGauge,
		breaker.TripsTotal,
	}
	return append(collectors, httpserver.MetricsCollectors()...)
}
