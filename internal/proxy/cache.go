package proxy

import (
	"net/http"
	"sync"
	"time"
)

// cachedResponse is a frozen status/header/body snapshot for idempotent
// GETs, held for the route's cache TTL.
type cachedResponse struct {
	status    int
	header    http.Header
	body      []byte
	expiresAt time.Time
}

// responseCache is a process-local cache keyed by (method, full path
// including the query string, identity subject). It is intentionally in-process rather than backed by
// the coordination store: cached bodies can be large and the cache is a
// per-instance latency optimization, not a correctness-bearing primitive.
type responseCache struct {
	mu      sync.Mutex
	entries map[string]cachedResponse
	now     func() time.Time
}

func newResponseCache() *responseCache {
	return &responseCache{entries: map[string]cachedResponse{}, now: time.Now}
}

func cacheKey(method, path, subject string) string {
	return method + "\x00" + path + "\x00" + subject
}

func (c *responseCache) get(key string) (cachedResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return cachedResponse{}, false
	}
	if !entry.expiresAt.After(c.now()) {
		delete(c.entries, key)
		return cachedResponse{}, false
	}
	return entry, true
}

func (c *responseCache) set(key string, status int, header http.Header, body []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedResponse{
		status:    status,
		header:    header.Clone(),
		body:      body,
		expiresAt: c.now().Add(ttl),
	}
}
