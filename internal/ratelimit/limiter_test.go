package ratelimit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradecore/platform/internal/coordination/coordinationtest"
)

// erroringStore simulates a coordination store that is unreachable, to
// exercise the limiter's fail-open contract.
type erroringStore struct{}

func (erroringStore) IncrWithTTL(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("store unavailable")
}
func (erroringStore) TTL(context.Context, string) (time.Duration, error)        { return 0, errors.New("unavailable") }
func (erroringStore) Exists(context.Context, string) (bool, error)             { return false, errors.New("unavailable") }
func (erroringStore) SetWithTTL(context.Context, string, string, time.Duration) error {
	return errors.New("unavailable")
}
func (erroringStore) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("unavailable")
}
func (erroringStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("unavailable")
}
func (erroringStore) Delete(context.Context, string) error { return errors.New("unavailable") }
func (erroringStore) CompareAndDelete(context.Context, string, string) (bool, error) {
	return false, errors.New("unavailable")
}
func (erroringStore) CompareAndExtend(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestLimiter_SixRequestsWithinWindow: limit=5, six requests in one
// window. The first five are allowed with decreasing Remaining, the sixth
// is rejected with Remaining=0.
func TestLimiter_SixRequestsWithinWindow(t *testing.T) {
	store := coordinationtest.New()
	l := New(store, discardLogger())
	class := Class{Name: "default", Limit: 5, Window: 60 * time.Second}

	wantRemaining := []int{4, 3, 2, 1, 0, 0}
	for i, want := range wantRemaining {
		res := l.Check(context.Background(), "10.0.0.1", class)
		if i < 5 {
			assert.Truef(t, res.Allowed, "request %d should be allowed", i+1)
		} else {
			assert.Falsef(t, res.Allowed, "request %d should be rejected", i+1)
		}
		assert.Equal(t, want, res.Remaining, "request %d remaining", i+1)
		assert.GreaterOrEqual(t, int(res.ResetIn.Seconds()), 0)
		assert.LessOrEqual(t, int(res.ResetIn.Seconds()), 60)
	}
}

func TestLimiter_TTLOnlySetOnCreatingIncrement(t *testing.T) {
	store := coordinationtest.New()
	l := New(store, discardLogger())
	class := Class{Name: "default", Limit: 100, Window: time.Second}

	l.Check(context.Background(), "k", class)
	ttl1, err := store.TTL(context.Background(), "ratelimit:default:k")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	l.Check(context.Background(), "k", class)
	ttl2, err := store.TTL(context.Background(), "ratelimit:default:k")
	require.NoError(t, err)

	assert.LessOrEqual(t, ttl2, ttl1, "second increment must not reset the window TTL")
}

func TestLimiter_DifferentKeysIndependent(t *testing.T) {
	store := coordinationtest.New()
	l := New(store, discardLogger())
	class := Class{Name: "default", Limit: 1, Window: time.Minute}

	r1 := l.Check(context.Background(), "a", class)
	r2 := l.Check(context.Background(), "b", class)

	assert.True(t, r1.Allowed)
	assert.True(t, r2.Allowed)
}

func TestLimiter_ZeroLimitMeansUnbounded(t *testing.T) {
	store := coordinationtest.New()
	l := New(store, discardLogger())
	class := Class{Name: "unbounded", Limit: 0, Window: time.Minute}

	res := l.Check(context.Background(), "k", class)
	assert.True(t, res.Allowed)
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	l := New(erroringStore{}, discardLogger())
	class := Class{Name: "default", Limit: 1, Window: time.Minute}

	res := l.Check(context.Background(), "k", class)
	assert.True(t, res.Allowed, "a store outage must not reject traffic")
}

func TestKey_PrefersIdentitySubjectOverIP(t *testing.T) {
	assert.Equal(t, "id:alice", Key("alice", "10.0.0.1"))
	assert.Equal(t, "ip:10.0.0.1", Key("", "10.0.0.1"))
}
