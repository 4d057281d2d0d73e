// Package cache provides best-effort redis caching for listing endpoints.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"stashkeeper/internal/observability"
)

var client *redis.Client

// InitRedis connects the package-level client. The service runs without a
// cache when redis is unreachable.
func InitRedis(addr string) {
	c := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		observability.Logger.Warn("redis unreachable, continuing without cache", "error", err)
		client = nil
		return
	}
	client = c
	observability.Logger.Info("redis connected", "addr", addr)
}

// GetClient returns the shared client, or nil when redis is unavailable.
func GetClient() *redis.Client {
	return client
}

// Close shuts down the shared client.
func Close() {
	if client != nil {
		_ = client.Close()
		client = nil
	}
}
