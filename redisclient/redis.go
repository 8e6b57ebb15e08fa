// Package redisclient wraps the shared counter store client used by the
// rate-limit primitives and the API-key validation cache.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/quotaguard/rls-gateway/config"
	"github.com/redis/go-redis/v9"
)

// Client wraps a *redis.Client, exposed for the packages that need to run
// Watch transactions (ratelimit) or simple Get/Set (middleware auth cache).
type Client struct {
	*redis.Client
}

// New creates a Redis client from the provided config. Returns an error if
// the Redis URL cannot be parsed.
func New(cfg *config.Config) (*Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	return &Client{Client: redis.NewClient(opt)}, nil
}

// Ping verifies connectivity with a bounded timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.Client.Ping(ctx).Err()
}
