package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes for listing caches. Mutations invalidate these wholesale.
const (
	queueKeyPrefix = "queue:"
	userKeyPrefix  = "user_requests:"
)

// QueueKey returns the cache key for one resource's queue listing; the empty
// key covers the all-resources listing.
func QueueKey(resourceKey string) string {
	if resourceKey == "" {
		return queueKeyPrefix + "_all"
	}
	return queueKeyPrefix + resourceKey
}

// UserKey returns the cache key for one user's request listing.
func UserKey(userID string) string {
	return userKeyPrefix + userID
}

// GetJSON attempts to get the key from redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	s, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// CacheAside tries redis first, on miss it calls fetch (which should populate
// dest), then stores the result with ttl. fetch must write into dest.
func CacheAside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err == nil && found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	// best-effort store
	_ = SetJSON(ctx, key, dest, ttl)
	return nil
}

// InvalidateListings drops the cached queue and user listings touched by a
// mutation. Best-effort: a stale entry only survives until its TTL.
func InvalidateListings(ctx context.Context, resourceKey, userID string) {
	if client == nil {
		return
	}
	keys := []string{QueueKey(""), QueueKey(resourceKey)}
	if userID != "" {
		keys = append(keys, UserKey(userID))
	}
	_ = client.Del(ctx, keys...).Err()
}
