package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"whisperchain/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// GetJSON fetches a key and unmarshals it into dest. Returns false on a
// miss, an unmarshal failure, or when the cache is unavailable.
func GetJSON(ctx context.Context, key string, dest any) bool {
	if client == nil {
		return false
	}

	data, err := client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.Logger.WarnContext(ctx, "cache get failed", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		middleware.Logger.WarnContext(ctx, "cache unmarshal failed", "key", key, "error", err)
		return false
	}
	return true
}

// SetJSON marshals value and stores it under key with the given TTL.
// Cache write failures are logged and otherwise ignored.
func SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if client == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache marshal failed", "key", key, "error", err)
		return
	}

	if err := client.Set(ctx, key, data, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// Delete removes keys from the cache, ignoring failures.
func Delete(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache delete failed", "keys", keys, "error", err)
	}
}

// CacheAside returns the cached value under key when present, otherwise
// loads it, stores the result, and returns it. Load errors pass through
// without touching the cache.
func CacheAside[T any](ctx context.Context, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	var cached T
	if GetJSON(ctx, key, &cached) {
		return cached, nil
	}

	value, err := load()
	if err != nil {
		return value, err
	}

	SetJSON(ctx, key, value, ttl)
	return value, nil
}
