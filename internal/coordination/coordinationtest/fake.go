// Package coordinationtest provides an in-memory coordination.Interface fake
// so internal/ratelimit, internal/ipblock, and internal/lock can be unit
// tested deterministically without a live Redis instance.
package coordinationtest

import (
	"context"
	"sync"
	"time"

	"github.com/tradecore/platform/internal/coordination"
)

var _ coordination.Interface = (*Fake)(nil)

type entry struct {
	value   string
	expires time.Time // zero means no expiry
}

func (e entry) live(now time.Time) bool {
	return e.expires.IsZero() || e.expires.After(now)
}

// Fake is an in-memory, mutex-guarded implementation of coordination.Interface.
type Fake struct {
	mu   sync.Mutex
	data map[string]entry
	// Now lets tests control the clock; defaults to time.Now.
	Now func() time.Time
}

// New creates an empty Fake store.
func New() *Fake {
	return &Fake{data: map[string]entry{}, Now: time.Now}
}

func (f *Fake) now() time.Time { return f.Now() }

func (f *Fake) getLocked(key string) (entry, bool) {
	e, ok := f.data[key]
	if !ok || !e.live(f.now()) {
		if ok {
			delete(f.data, key)
		}
		return entry{}, false
	}
	return e, true
}

func (f *Fake) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.getLocked(key)
	if !ok {
		f.data[key] = entry{value: "1", expires: f.expiryOf(ttl)}
		return 1, nil
	}
	n := mustAtoi(e.value) + 1
	e.value = itoa(n)
	f.data[key] = e
	return n, nil
}

func (f *Fake) expiryOf(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return f.now().Add(ttl)
}

func (f *Fake) TTL(_ context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.getLocked(key)
	if !ok || e.expires.IsZero() {
		return 0, nil
	}
	d := e.expires.Sub(f.now())
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

func (f *Fake) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.getLocked(key)
	return ok, nil
}

func (f *Fake) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = entry{value: value, expires: f.expiryOf(ttl)}
	return nil
}

func (f *Fake) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.getLocked(key); ok {
		return false, nil
	}
	f.data[key] = entry{value: value, expires: f.expiryOf(ttl)}
	return true, nil
}

func (f *Fake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.getLocked(key)
	if !ok {
		return "", false, nil
	}
	return e.value, true, nil
}

func (f *Fake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.data, key)
	return nil
}

func (f *Fake) CompareAndDelete(_ context.Context, key, expected string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.getLocked(key)
	if !ok || e.value != expected {
		return false, nil
	}
	delete(f.data, key)
	return true, nil
}

func (f *Fake) CompareAndExtend(_ context.Context, key, expected string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.getLocked(key)
	if !ok || e.value != expected {
		return false, nil
	}
	e.expires = f.expiryOf(ttl)
	f.data[key] = e
	return true, nil
}

func mustAtoi(s string) int64 {
	var n int64
	for _, c := range s {
		n = n*10 + int64(c-'0')
	}
	return n
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
