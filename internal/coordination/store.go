// Package coordination wraps the shared Redis instance with the atomic
// primitives the gateway's rate limiter, IP block guard, and lock
// manager build on: counters with TTL, set-with-TTL, compare-and-set,
// and the token denylist.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes. Every coordination key carries one of these, so an
// operator can inspect or clear a concern's keys by pattern.
const (
	PrefixLoginFail = "login_fail:"
	PrefixIPBlock   = "ip_block:"
	PrefixRateLimit = "ratelimit:"
	PrefixLock      = "lock:"
	PrefixDenylist  = "denylist:"
	PrefixCache     = "cache:"
)

// Interface is the atomic primitive surface consumers of the coordination
// store depend on. internal/ratelimit, internal/ipblock, and internal/lock
// all take this interface rather than *Store so tests can substitute the
// in-memory fake in coordinationtest without a live Redis.
type Interface interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Exists(ctx context.Context, key string) (bool, error)
	SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	CompareAndExtend(ctx context.Context, key, expected string, ttl time.Duration) (bool, error)
}

// Store is a typed wrapper over the coordination Redis client.
type Store struct {
	rdb *redis.Client
}

var _ Interface = (*Store)(nil)

// New creates a coordination Store over an already-connected Redis client.
func New(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// incrWithTTLScript atomically increments key and, only on the increment
// that creates the key, sets its TTL. One atomic round trip; setting the
// TTL on every increment would let a busy key reset its own window
// forever.
var incrWithTTLScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// IncrWithTTL atomically increments key, setting its TTL to ttl only if this
// increment created the key. Returns the post-increment count.
func (s *Store) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	res, err := incrWithTTLScript.Run(ctx, s.rdb, []string{key}, ttl.Milliseconds()).Result()
	if err != nil {
		return 0, fmt.Errorf("incr with ttl %q: %w", key, err)
	}
	count, ok := res.(int64)
	if !ok {
		return 0, fmt.Errorf("incr with ttl %q: unexpected reply type %T", key, res)
	}
	return count, nil
}

// TTL returns the remaining time-to-live of key, or 0 if it has no TTL or
// does not exist.
func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := s.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ttl %q: %w", key, err)
	}
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// Exists reports whether key is currently set.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %q: %w", key, err)
	}
	return n > 0, nil
}

// SetWithTTL unconditionally sets key to value with the given TTL.
func (s *Store) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// SetNX sets key to value with the given TTL only if key does not already
// exist ("set-if-absent"). Returns true if the set happened.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx %q: %w", key, err)
	}
	return ok, nil
}

// Get returns the value stored at key, and false if it does not exist.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return v, true, nil
}

// Delete removes key unconditionally. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// compareAndDeleteScript deletes key only if its current value equals
// ARGV[1], atomically. Used by the lock manager's release so only the
// recorded owner can release a lock.
var compareAndDeleteScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CompareAndDelete deletes key only if its stored value equals expected,
// atomically. Returns true if the delete happened.
func (s *Store) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	res, err := compareAndDeleteScript.Run(ctx, s.rdb, []string{key}, expected).Result()
	if err != nil {
		return false, fmt.Errorf("compare-and-delete %q: %w", key, err)
	}
	n, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("compare-and-delete %q: unexpected reply type %T", key, res)
	}
	return n == 1, nil
}

// compareAndExtendScript extends key's TTL only if its current value equals
// ARGV[1], atomically. Used by the lock manager's heartbeat.
var compareAndExtendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// CompareAndExtend extends key's TTL to ttl only if its stored value equals
// expected, atomically. Returns true if the extension happened.
func (s *Store) CompareAndExtend(ctx context.Context, key, expected string, ttl time.Duration) (bool, error) {
	res, err := compareAndExtendScript.Run(ctx, s.rdb, []string{key}, expected, ttl.Milliseconds()).Result()
	if err != nil {
		return false, fmt.Errorf("compare-and-extend %q: %w", key, err)
	}
	n, ok := res.(int64)
	if !ok {
		return false, fmt.Errorf("compare-and-extend %q: unexpected reply type %T", key, res)
	}
	return n == 1, nil
}

// Denylist adapts the Store to auth.Denylist.
type Denylist struct {
	store *Store
}

// NewDenylist creates a token denylist backed by the coordination store.
func NewDenylist(store *Store) *Denylist {
	return &Denylist{store: store}
}

// Contains reports whether fingerprint has been revoked.
func (d *Denylist) Contains(ctx context.Context, fingerprint string) (bool, error) {
	return d.store.Exists(ctx, PrefixDenylist+fingerprint)
}

// Add places fingerprint on the denylist for ttl, the remaining token
// lifetime.
func (d *Denylist) Add(ctx context.Context, fingerprint string, ttl time.Duration) error {
	return d.store.SetWithTTL(ctx, PrefixDenylist+fingerprint, "1", ttl)
}
