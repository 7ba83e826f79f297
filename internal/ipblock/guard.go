// Package ipblock implements the IP block guard: it counts failed
// logins per source address and blocks the address after a threshold.
package ipblock

import (
	"context"
	"fmt"
	"time"

	"github.com/tradecore/platform/internal/coordination"
	"github.com/tradecore/platform/internal/telemetry"
)

// Guard tracks failed logins per source address and enforces blocks.
type Guard struct {
	store     coordination.Interface
	threshold int
	blockTTL  time.Duration
}

// New creates a Guard. threshold is the number of failed logins within
// blockTTL that trips the block; blockTTL is also the window over which
// failures are counted and the block duration.
func New(store coordination.Interface, threshold int, blockTTL time.Duration) *Guard {
	return &Guard{store: store, threshold: threshold, blockTTL: blockTTL}
}

// Blocked reports whether source is currently blocked, i.e. whether
// ip_block:<source> exists.
func (g *Guard) Blocked(ctx context.Context, source string) (bool, error) {
	ok, err := g.store.Exists(ctx, coordination.PrefixIPBlock+source)
	if err != nil {
		return false, fmt.Errorf("checking ip block for %s: %w", source, err)
	}
	return ok, nil
}

// RecordFailure records a failed login attempt from source: an atomic
// increment of login_fail:<source> with TTL=blockTTL, then, once the count
// reaches the threshold, a set of ip_block:<source> with the same TTL.
func (g *Guard) RecordFailure(ctx context.Context, source string) error {
	count, err := g.store.IncrWithTTL(ctx, coordination.PrefixLoginFail+source, g.blockTTL)
	if err != nil {
		return fmt.Errorf("recording login failure for %s: %w", source, err)
	}
	if count >= int64(g.threshold) {
		if err := g.store.SetWithTTL(ctx, coordination.PrefixIPBlock+source, "1", g.blockTTL); err != nil {
			return fmt.Errorf("setting ip block for %s: %w", source, err)
		}
		telemetry.IPBlocksTotal.Inc()
	}
	return nil
}

// Clear removes both the failure counter and the block for source. Both
// keys must be cleared together or the next failure re-arms the block.
func (g *Guard) Clear(ctx context.Context, source string) error {
	if err := g.store.Delete(ctx, coordination.PrefixLoginFail+source); err != nil {
		return fmt.Errorf("clearing login fail counter for %s: %w", source, err)
	}
	if err := g.store.Delete(ctx, coordination.PrefixIPBlock+source); err != nil {
		return fmt.Errorf("clearing ip block for %s: %w", source, err)
	}
	return nil
}
