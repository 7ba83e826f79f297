package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects to the coordination store. Every gateway request
// touches Redis at least once (IP block check, rate-limit increment), so
// the client is tuned for many short commands: tight dial/command timeouts
// and no internal retries. The rate limiter and block guard fail open on
// errors, and the lock manager does its own backoff.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	opts.MaxRetries = -1 // retry policy lives in the callers, not the client

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at startup: %w", err)
	}

	return client, nil
}
