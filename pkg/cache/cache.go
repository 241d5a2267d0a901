// Package cache defines a common interface for cache implementations that can
// be used to remember primality verdicts and search results.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"
)

// Cache defines an interface for a cache implementation that can be used to
// store the results of a calculation for subsequent lookup requests.
type Cache interface {
	// Return the string that was set for key (or "" if unset) and an Error
	// if the implementation failed.
	// NOTE: a cache miss *should not* return an error.
	GetValue(ctx context.Context, key string) (string, error)
	// Store the value string with the provided key, returning an error if
	// the implementation failed.
	SetValue(ctx context.Context, key string, value string) error
}

// Values stored under a VerdictKey.
const (
	VerdictPrime     = "prime"
	VerdictComposite = "composite"
)

// Returns the key used to store the primality verdict for the hexadecimal value
// after rounds Miller-Rabin rounds.
func VerdictKey(hex string, rounds int) string {
	return "test/" + hex + "/" + strconv.Itoa(rounds)
}

// Returns the key used to store the result of the search with id.
func SearchKey(id string) string {
	return "search/" + id
}

// NoopCache implements Cache interface without any real cacheing.
type NoopCache struct{}

// Always returns an empty string and no error for every key.
func (n *NoopCache) GetValue(_ context.Context, _ string) (string, error) {
	return "", nil
}

// Ignores the value and returns nil error.
func (n *NoopCache) SetValue(_ context.Context, _ string, _ string) error {
	return nil
}

// Creates a no-operation Cache implementation that satisfies the interface
// requirements without performing any real caching. All values are silently
// dropped by SetValue and calls to GetValue always return an empty string.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// RedisCache implements Cache interface backed by a Redis store.
type RedisCache struct {
	*redis.Pool
	// Prepended to every key before it is sent to Redis
	prefix string
	// If > 0, the expiration applied to stored values
	expiration time.Duration
}

// Defines the function signature for RedisCache options.
type RedisCacheOption func(*RedisCache)

// Return a new Cache implementation using Redis.
func NewRedisCache(_ context.Context, endpoint string, options ...RedisCacheOption) *RedisCache {
	cache := &RedisCache{
		Pool: &redis.Pool{
			DialContext: func(ctx context.Context) (redis.Conn, error) {
				return redis.DialContext(ctx, "tcp", endpoint)
			},
			MaxIdle:     3,
			IdleTimeout: 4 * time.Minute,
		},
	}
	for _, option := range options {
		option(cache)
	}
	return cache
}

// Prefix every key with the string; useful when a Redis instance is shared.
func WithKeyPrefix(prefix string) RedisCacheOption {
	return func(r *RedisCache) {
		r.prefix = prefix
	}
}

// Expire stored values after the duration; a value <= 0 disables expiration.
func WithExpiration(expiration time.Duration) RedisCacheOption {
	return func(r *RedisCache) {
		r.expiration = expiration
	}
}

// Set the maximum number of idle connections kept in the pool.
func WithMaxIdle(maxIdle int) RedisCacheOption {
	return func(r *RedisCache) {
		if maxIdle > 0 {
			r.MaxIdle = maxIdle
		}
	}
}

// Returns the string value stored in Redis under key, if present, or an empty string.
func (r *RedisCache) GetValue(ctx context.Context, key string) (string, error) {
	conn, err := r.GetContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()

	value, err := redis.String(redis.DoContext(conn, ctx, "GET", r.prefix+key))
	if errors.Is(err, redis.ErrNil) {
		// A cache miss is *NOT* an error to propagate
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis GET failed: %w", err)
	}
	return value, nil
}

// Store the string key:value pair in Redis.
func (r *RedisCache) SetValue(ctx context.Context, key string, value string) error {
	conn, err := r.GetContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to get redis connection: %w", err)
	}
	defer conn.Close()
	args := redis.Args{}.Add(r.prefix+key, value)
	if r.expiration > 0 {
		args = args.Add("PX", r.expiration.Milliseconds())
	}
	if _, err = redis.DoContext(conn, ctx, "SET", args...); err != nil {
		return fmt.Errorf("redis SET failed: %w", err)
	}
	return nil
}
