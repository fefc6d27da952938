package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Compile-time interface check.
var _ Cache[struct{}] = (*RedisCache[struct{}])(nil)

// RedisCache implements Cache on top of a go-redis client. Values are stored
// JSON-encoded, so T must round-trip through encoding/json.
// Suitable for multi-instance deployments.
type RedisCache[T any] struct {
	client *redis.Client
}

// NewRedisCache wraps an existing go-redis client. The caller owns the
// client's configuration; Close releases it.
func NewRedisCache[T any](client *redis.Client) *RedisCache[T] {
	return &RedisCache[T]{client: client}
}

// Get retrieves a value from cache.
func (r *RedisCache[T]) Get(ctx context.Context, key string) (T, error) {
	var zero T

	raw, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return zero, ErrCacheMiss
	}
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	return value, nil
}

// Set stores a value in cache with TTL.
func (r *RedisCache[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidValue, err)
	}
	if err := r.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Delete removes a key from cache.
func (r *RedisCache[T]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Close closes the underlying client.
func (r *RedisCache[T]) Close() error {
	return r.client.Close()
}

// Health pings the backend.
func (r *RedisCache[T]) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
