// Package breaker implements the per-downstream circuit breaker, a
// closed/open/half-open state machine. State is held
// in-process; a network round trip to the coordination store per request
// would defeat the breaker's purpose of insulating the gateway from a slow
// store.
package breaker

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// State is one of the three machine states.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Allow when the breaker is open or the half-open
// probe slot is exhausted.
type ErrOpen struct{ Downstream string }

func (e ErrOpen) Error() string { return "circuit breaker open for " + e.Downstream }

// Config holds the per-downstream thresholds.
type Config struct {
	// FailureThreshold (N) is the number of consecutive failures within
	// Window (F) that trips the breaker open.
	FailureThreshold int
	Window           time.Duration
	// Cooldown (C) is the time the breaker stays open before allowing a
	// half-open probe.
	Cooldown time.Duration
	// ProbeCount (P) is the number of concurrent half-open probes allowed
	// and the number of consecutive probe successes required to close.
	ProbeCount int
}

// StateGauge exports breaker state per downstream for registration with the
// process's Prometheus registry (see internal/telemetry.All).
var StateGauge = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "platform",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Circuit breaker state per downstream (0=closed, 1=open, 2=half_open).",
	},
	[]string{"downstream"},
)

var stateGauge = StateGauge

// TripsTotal counts Open transitions per downstream.
var TripsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "platform",
		Subsystem: "breaker",
		Name:      "trips_total",
		Help:      "Total number of times a downstream's circuit breaker opened.",
	},
	[]string{"downstream"},
)

// Breaker tracks failure/success state for a single downstream.
type Breaker struct {
	downstream string
	cfg        Config

	mu               sync.Mutex
	state            State
	consecutiveFails int
	firstFailAt      time.Time
	openedAt         time.Time
	probesInFlight   int
	probeSuccesses   int

	now func() time.Time
}

// New creates a Breaker for downstream with the given thresholds.
func New(downstream string, cfg Config) *Breaker {
	b := &Breaker{
		downstream: downstream,
		cfg:        cfg,
		state:      Closed,
		now:        time.Now,
	}
	stateGauge.WithLabelValues(downstream).Set(0)
	return b
}

// Allow reports whether a request may proceed. It returns ErrOpen when the
// breaker is open, or when half-open and the probe budget is exhausted.
// Callers that get a nil error but are in the half-open state are
// considered a "probe" and must report the outcome via Success/Failure.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		return nil
	case Open:
		if b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
			b.transitionLocked(HalfOpen)
			b.probesInFlight = 1
			return nil
		}
		return ErrOpen{Downstream: b.downstream}
	case HalfOpen:
		if b.probesInFlight < b.cfg.ProbeCount {
			b.probesInFlight++
			return nil
		}
		return ErrOpen{Downstream: b.downstream}
	default:
		return nil
	}
}

// Success records a successful response (any status except 5xx).
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Closed:
		b.consecutiveFails = 0
	case HalfOpen:
		b.probeSuccesses++
		if b.probeSuccesses >= b.cfg.ProbeCount {
			b.transitionLocked(Closed)
		}
	}
}

// Failure records a failed response (5xx, network error, timeout).
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()

	switch b.state {
	case Closed:
		if b.consecutiveFails == 0 || now.Sub(b.firstFailAt) > b.cfg.Window {
			b.firstFailAt = now
			b.consecutiveFails = 0
		}
		b.consecutiveFails++
		if b.consecutiveFails >= b.cfg.FailureThreshold {
			b.transitionLocked(Open)
		}
	case HalfOpen:
		b.transitionLocked(Open)
	}
}

// CurrentState returns the current state, for inspection and metrics export.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordOutcome classifies an HTTP status code per the breaker contract
// (5xx is a failure, everything else forwarded by the proxy is a success)
// and updates b accordingly. Transport errors surface as the proxy's own
// 502/504 and are classified here the same way.
func RecordOutcome(b *Breaker, statusCode int) {
	if statusCode >= 500 {
		b.Failure()
		return
	}
	b.Success()
}

func (b *Breaker) transitionLocked(to State) {
	switch to {
	case Open:
		b.openedAt = b.now()
		b.consecutiveFails = 0
		b.probesInFlight = 0
		b.probeSuccesses = 0
		TripsTotal.WithLabelValues(b.downstream).Inc()
	case HalfOpen:
		b.probeSuccesses = 0
	case Closed:
		b.consecutiveFails = 0
		b.probesInFlight = 0
		b.probeSuccesses = 0
	}
	b.state = to
	stateGauge.WithLabelValues(b.downstream).Set(float64(to))
}
