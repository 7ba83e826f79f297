// Package proxy implements the proxy engine: forwards a matched
// request to its downstream, streams the response back, injects identity
// headers, preserves rate-limit headers across the copy, and classifies
// outcomes for the circuit breaker.
package proxy

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/tradecore/platform/internal/apierror"
	"github.com/tradecore/platform/internal/auth"
	"github.com/tradecore/platform/internal/breaker"
	"github.com/tradecore/platform/internal/ratelimit"
	"github.com/tradecore/platform/internal/router"
	"github.com/tradecore/platform/internal/telemetry"
)

const (
	// totalBudget bounds the whole proxied round trip.
	totalBudget = 30 * time.Second
	// connectTimeout bounds the TCP+TLS handshake to the downstream.
	connectTimeout = 2 * time.Second
	// idleTimeout bounds how long an idle keep-alive connection is kept.
	idleTimeout = 10 * time.Second
)

// Engine hosts one reverse proxy per downstream and the optional response
// cache for idempotent GETs.
type Engine struct {
	proxies   map[string]*httputil.ReverseProxy
	breakers  *breaker.Registry
	cache     *responseCache
	logger    *slog.Logger
}

// NewEngine builds an Engine from a downstream-name -> base-URL map. Each
// downstream gets its own *httputil.ReverseProxy sharing one Transport
// with the connect/idle bounds above.
func NewEngine(downstreamURLs map[string]string, breakers *breaker.Registry, logger *slog.Logger) (*Engine, error) {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		IdleConnTimeout:     idleTimeout,
		MaxIdleConnsPerHost: 32,
	}

	e := &Engine{
		proxies:  make(map[string]*httputil.ReverseProxy),
		breakers: breakers,
		cache:    newResponseCache(),
		logger:   logger,
	}

	for name, rawURL := range downstreamURLs {
		target, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		rp := httputil.NewSingleHostReverseProxy(target)
		rp.Transport = transport
		downstream := name
		defaultDirector := rp.Director
		rp.Director = func(req *http.Request) {
			req.URL.Path = stripAPIPrefix(req.URL.Path)
			defaultDirector(req)
		}
		rp.ErrorHandler = e.errorHandler(downstream)
		e.proxies[downstream] = rp
	}

	return e, nil
}

// ServeHTTP forwards the request to the route resolved by
// router.Middleware.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route, ok := router.RouteFromContext(r.Context())
	if !ok {
		apierror.Write(w, r, apierror.Internal())
		return
	}

	rp, ok := e.proxies[route.Downstream]
	if !ok {
		apierror.Write(w, r, apierror.Internal())
		return
	}

	identity := auth.FromContext(r.Context())
	subject := ""
	if identity != nil {
		subject = identity.Subject
	}

	if route.CacheTTL > 0 && r.Method == http.MethodGet {
		key := cacheKey(r.Method, r.URL.RequestURI(), subject)
		if cached, ok := e.cache.get(key); ok {
			writeCached(w, r, cached)
			return
		}
	}

	if route.BreakerEnabled {
		if b := e.breakers.Get(route.Downstream); b != nil {
			if err := b.Allow(); err != nil {
				apierror.Write(w, r, apierror.ServiceUnavailable(err.Error()))
				return
			}
		}
	}

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	r.Header.Set("X-Request-ID", requestID)
	if identity != nil {
		r.Header.Set("X-User-Subject", identity.Subject)
		r.Header.Set("X-User-Role", identity.Role)
	}
	stripHopByHop(r.Header)

	ctx, cancel := context.WithTimeout(r.Context(), totalBudget)
	defer cancel()
	r = r.WithContext(ctx)

	capture := &captureWriter{ResponseWriter: w}
	if rlResult, ok := ratelimit.FromContext(r.Context()); ok {
		capture.rl = &rlResult
	}
	var buf *bodyBuffer
	if route.CacheTTL > 0 && r.Method == http.MethodGet {
		buf = &bodyBuffer{}
		capture.tee = buf
	}

	started := time.Now()
	rp.ServeHTTP(capture, r)
	telemetry.ProxyRequestDuration.
		WithLabelValues(route.Downstream, statusClass(capture.status)).
		Observe(time.Since(started).Seconds())

	if route.BreakerEnabled {
		if b := e.breakers.Get(route.Downstream); b != nil {
			breaker.RecordOutcome(b, capture.status)
		}
	}

	if buf != nil && capture.status < 300 {
		e.cache.set(cacheKey(r.Method, r.URL.RequestURI(), subject), capture.status, capture.Header(), buf.Bytes(), route.CacheTTL)
	}
}

// stripAPIPrefix removes the gateway-facing "/api/v1" prefix so downstream
// services see their own rooted paths.
func stripAPIPrefix(path string) string {
	const prefix = "/api/v1"
	if trimmed, ok := cutPrefix(path, prefix); ok {
		if trimmed == "" {
			return "/"
		}
		return trimmed
	}
	return path
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || s[:len(prefix)] != prefix {
		return s, false
	}
	return s[len(prefix):], true
}

func (e *Engine) errorHandler(downstream string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		e.logger.Error("downstream proxy error", "downstream", downstream, "error", err)

		// The 502/504 written below flows through the captureWriter, so
		// ServeHTTP's RecordOutcome pass classifies this as a failure; no
		// direct breaker update here or the error would count twice.
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			apierror.Write(w, r, apierror.GatewayTimeout("downstream "+downstream+" timed out"))
			return
		}
		apierror.Write(w, r, apierror.BadGateway("downstream "+downstream+" is unreachable"))
	}
}

func writeCached(w http.ResponseWriter, r *http.Request, cached cachedResponse) {
	for k, vs := range cached.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.Header().Set("X-Cache", "HIT")
	if rlResult, ok := ratelimit.FromContext(r.Context()); ok {
		rlResult.SetHeaders(w)
	}
	w.WriteHeader(cached.status)
	_, _ = w.Write(cached.body)
}

// captureWriter records the status code written by the reverse proxy so the
// breaker and cache can inspect it, re-applies the rate-limit headers just
// before the header block is flushed (the downstream copy may have
// clobbered them), and optionally tees the body into a buffer for caching.
type captureWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	tee         *bodyBuffer
	rl          *ratelimit.Result
}

func (c *captureWriter) WriteHeader(code int) {
	if c.wroteHeader {
		return
	}
	c.wroteHeader = true
	c.status = code
	if c.rl != nil {
		c.rl.SetHeaders(c.ResponseWriter)
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if c.tee != nil {
		c.tee.Write(b)
	}
	return c.ResponseWriter.Write(b)
}

type bodyBuffer struct {
	data []byte
}

func (b *bodyBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *bodyBuffer) Bytes() []byte { return b.data }

var _ io.Writer = (*bodyBuffer)(nil)
