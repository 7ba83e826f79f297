package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(cfg Config) (*Breaker, *fakeClock) {
	b := New("inventory-"+time.Now().String(), cfg)
	clk := &fakeClock{t: time.Now()}
	b.now = clk.Now
	return b, clk
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// TestBreaker_OpensAfterNConsecutiveFailures: 5 failures open the
// breaker, and the 6th call is short-circuited.
func TestBreaker_OpensAfterNConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 5, Window: time.Second, Cooldown: 60 * time.Second, ProbeCount: 3})

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Allow(), "call %d should be admitted while closed", i+1)
		b.Failure()
	}

	assert.Equal(t, Open, b.CurrentState())
	err := b.Allow()
	assert.Error(t, err, "6th call must be short-circuited")
	var openErr ErrOpen
	assert.ErrorAs(t, err, &openErr)
}

func TestBreaker_StaysClosedOnIntermittentFailures(t *testing.T) {
	b, _ := newTestBreaker(Config{FailureThreshold: 3, Window: time.Second, Cooldown: time.Minute, ProbeCount: 1})

	require.NoError(t, b.Allow())
	b.Failure()
	require.NoError(t, b.Allow())
	b.Success()
	require.NoError(t, b.Allow())
	b.Failure()

	assert.Equal(t, Closed, b.CurrentState(), "a success resets the consecutive-failure count")
}

func TestBreaker_FailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	b, clk := newTestBreaker(Config{FailureThreshold: 2, Window: 100 * time.Millisecond, Cooldown: time.Minute, ProbeCount: 1})

	require.NoError(t, b.Allow())
	b.Failure()

	clk.Advance(200 * time.Millisecond)

	require.NoError(t, b.Allow())
	b.Failure()

	assert.Equal(t, Closed, b.CurrentState(), "failure outside the window restarts the count instead of tripping")
}

// TestBreaker_OpensThenHalfOpensAfterCooldown covers recovery: after
// cooldown elapses, the breaker allows probes; P consecutive probe
// successes close it.
func TestBreaker_OpensThenHalfOpensAfterCooldown(t *testing.T) {
	b, clk := newTestBreaker(Config{FailureThreshold: 1, Window: time.Second, Cooldown: 30 * time.Second, ProbeCount: 2})

	require.NoError(t, b.Allow())
	b.Failure()
	require.Equal(t, Open, b.CurrentState())

	assert.Error(t, b.Allow(), "still within cooldown")

	clk.Advance(31 * time.Second)

	require.NoError(t, b.Allow(), "cooldown elapsed, first probe admitted")
	assert.Equal(t, HalfOpen, b.CurrentState())
	b.Success()
	assert.Equal(t, HalfOpen, b.CurrentState(), "needs P consecutive successes")

	require.NoError(t, b.Allow(), "second probe admitted")
	b.Success()
	assert.Equal(t, Closed, b.CurrentState(), "P consecutive probe successes close the breaker")
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	b, clk := newTestBreaker(Config{FailureThreshold: 1, Window: time.Second, Cooldown: 10 * time.Second, ProbeCount: 2})

	require.NoError(t, b.Allow())
	b.Failure()
	clk.Advance(11 * time.Second)

	require.NoError(t, b.Allow())
	assert.Equal(t, HalfOpen, b.CurrentState())
	b.Failure()

	assert.Equal(t, Open, b.CurrentState(), "any probe failure reopens")
}

func TestBreaker_HalfOpenProbeBudgetExhausted(t *testing.T) {
	b, clk := newTestBreaker(Config{FailureThreshold: 1, Window: time.Second, Cooldown: 5 * time.Second, ProbeCount: 1})

	require.NoError(t, b.Allow())
	b.Failure()
	clk.Advance(6 * time.Second)

	require.NoError(t, b.Allow(), "first probe admitted")
	assert.Error(t, b.Allow(), "probe budget of 1 is exhausted until outcome resolves")
}

func TestRegistry_GetCreatesPerDownstreamBreaker(t *testing.T) {
	reg := NewRegistry(Config{FailureThreshold: 5, Window: time.Second, Cooldown: time.Minute, ProbeCount: 1})

	a := reg.Get("inventory")
	b := reg.Get("inventory")
	c := reg.Get("order")

	assert.Same(t, a, b, "same downstream returns the same breaker instance")
	assert.NotSame(t, a, c, "different downstreams get independent breakers")
}
