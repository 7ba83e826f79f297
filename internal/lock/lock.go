// Package lock implements the distributed lock manager: named,
// owner-scoped locks with TTL, fair-enough retry, and safe release.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/tradecore/platform/internal/coordination"
	"github.com/tradecore/platform/internal/telemetry"
)

// ErrTimeout is returned by Acquire when wait_max elapses without
// acquiring the lock.
var ErrTimeout = errors.New("lock: wait_max exceeded")

// Owner identifies the holder of an acquired lock.
type Owner struct {
	Name      string
	ID        string
	AcquiredAt time.Time
	TTL       time.Duration
}

// Manager acquires, releases, and heartbeats named locks backed by the
// coordination store.
type Manager struct {
	store coordination.Interface

	// backoffBase and backoffCap bound the capped exponential retry
	// between acquisition attempts.
	backoffBase time.Duration
	backoffCap  time.Duration
}

// New creates a lock Manager with the default retry backoff (10ms base,
// 250ms cap).
func New(store coordination.Interface) *Manager {
	return &Manager{store: store, backoffBase: 10 * time.Millisecond, backoffCap: 250 * time.Millisecond}
}

// Acquire attempts an atomic set-if-absent on name with a freshly
// generated owner id and expiry ttl, retrying with capped exponential
// backoff until waitMax elapses. Returns ErrTimeout if never acquired.
func (m *Manager) Acquire(ctx context.Context, name string, ttl, waitMax time.Duration) (Owner, error) {
	ownerID, err := randomOwnerID()
	if err != nil {
		return Owner{}, fmt.Errorf("generating owner id: %w", err)
	}
	key := coordination.PrefixLock + name

	started := time.Now()
	deadline := started.Add(waitMax)
	backoff := m.backoffBase

	for {
		ok, err := m.store.SetNX(ctx, key, ownerID, ttl)
		if err != nil {
			return Owner{}, fmt.Errorf("acquiring lock %q: %w", name, err)
		}
		if ok {
			telemetry.LockWaitDuration.Observe(time.Since(started).Seconds())
			return Owner{Name: name, ID: ownerID, AcquiredAt: time.Now(), TTL: ttl}, nil
		}

		if !time.Now().Add(backoff).Before(deadline) {
			telemetry.LockTimeoutsTotal.Inc()
			return Owner{}, ErrTimeout
		}

		select {
		case <-ctx.Done():
			return Owner{}, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > m.backoffCap {
			backoff = m.backoffCap
		}
	}
}

// Release deletes name only if it is still owned by owner. Releasing a
// lock that already expired is a silent no-op.
func (m *Manager) Release(ctx context.Context, owner Owner) error {
	key := coordination.PrefixLock + owner.Name
	_, err := m.store.CompareAndDelete(ctx, key, owner.ID)
	if err != nil {
		return fmt.Errorf("releasing lock %q: %w", owner.Name, err)
	}
	return nil
}

// Heartbeat extends owner's lock TTL only if it is still held, returning
// false (with no error) if the lock has already expired or changed hands.
func (m *Manager) Heartbeat(ctx context.Context, owner Owner, ttl time.Duration) (bool, error) {
	key := coordination.PrefixLock + owner.Name
	ok, err := m.store.CompareAndExtend(ctx, key, owner.ID, ttl)
	if err != nil {
		return false, fmt.Errorf("extending lock %q: %w", owner.Name, err)
	}
	return ok, nil
}

func randomOwnerID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
