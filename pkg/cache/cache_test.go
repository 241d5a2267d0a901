package cache_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/memes/prime/pkg/cache"
)

const (
	TEST_CACHE_LOOP_LIMIT = 10
)

// The noopCache should do nothing useful. This test confirms that values can
// appear to be added successfully, but an attempt to recall the value will
// result in an empty string.
func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	cache := cache.NewNoopCache()
	if cache == nil {
		t.Error("Noop cache is nil")
	}
	for i := uint64(0); i < TEST_CACHE_LOOP_LIMIT; i++ {
		expected := ""
		key := strconv.FormatUint(i, 16)
		actual, err := cache.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
		if err = cache.SetValue(ctx, key, "prime"); err != nil {
			t.Errorf("Index: %d: SetValue returned an error: %v", i, err)
		}
		actual, err = cache.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
	}
}

// The RedisCache will use a Redis-like in-memory instance to cache values. The
// test should confirm that a value can be added to the cache and recalled
// successfully.
func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	mock := miniredis.RunT(t)
	cache := cache.NewRedisCache(ctx, mock.Addr())
	if cache == nil {
		t.Fatal("Redis cache is nil")
	}
	defer cache.Close()
	for i := uint64(0); i < TEST_CACHE_LOOP_LIMIT; i++ {
		expected := ""
		key := strconv.FormatUint(i, 16)
		actual, err := cache.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
		expected = fmt.Sprintf("%09d", i)
		if err = cache.SetValue(ctx, key, expected); err != nil {
			t.Errorf("Index: %d: SetValue returned an error: %v", i, err)
		}
		actual, err = cache.GetValue(ctx, key)
		if err != nil {
			t.Errorf("GetValue returned an error: %v", err)
		}
		if actual != expected {
			t.Errorf("Index %d: Expected %s received %s", i, expected, actual)
		}
	}
}

func TestRedisCache_WithKeyPrefix(t *testing.T) {
	ctx := context.Background()
	mock := miniredis.RunT(t)
	cache := cache.NewRedisCache(ctx, mock.Addr(), cache.WithKeyPrefix("prime:"), cache.WithMaxIdle(1))
	defer cache.Close()
	if err := cache.SetValue(ctx, "61/50", "true"); err != nil {
		t.Fatalf("SetValue returned an error: %v", err)
	}
	actual, err := mock.Get("prime:61/50")
	if err != nil {
		t.Fatalf("miniredis Get returned an error: %v", err)
	}
	if actual != "true" {
		t.Errorf("Expected true received %s", actual)
	}
	if mock.Exists("61/50") {
		t.Error("Unprefixed key was written to Redis")
	}
	value, err := cache.GetValue(ctx, "61/50")
	if err != nil {
		t.Errorf("GetValue returned an error: %v", err)
	}
	if value != "true" {
		t.Errorf("Expected true received %s", value)
	}
}

func TestRedisCache_WithExpiration(t *testing.T) {
	ctx := context.Background()
	mock := miniredis.RunT(t)
	cache := cache.NewRedisCache(ctx, mock.Addr(), cache.WithExpiration(time.Minute))
	defer cache.Close()
	if err := cache.SetValue(ctx, "key", "value"); err != nil {
		t.Fatalf("SetValue returned an error: %v", err)
	}
	if ttl := mock.TTL("key"); ttl != time.Minute {
		t.Errorf("Expected TTL %v received %v", time.Minute, ttl)
	}
	mock.FastForward(2 * time.Minute)
	actual, err := cache.GetValue(ctx, "key")
	if err != nil {
		t.Errorf("GetValue returned an error: %v", err)
	}
	if actual != "" {
		t.Errorf("Expected expired value to be a miss, received %s", actual)
	}
}

// A Redis failure is an error, not a miss.
func TestRedisCache_Error(t *testing.T) {
	ctx := context.Background()
	mock := miniredis.RunT(t)
	cache := cache.NewRedisCache(ctx, mock.Addr())
	defer cache.Close()
	mock.SetError("server is unhappy")
	if _, err := cache.GetValue(ctx, "key"); err == nil {
		t.Error("Expected GetValue to return an error")
	}
	if err := cache.SetValue(ctx, "key", "value"); err == nil {
		t.Error("Expected SetValue to return an error")
	}
	mock.SetError("")
	mock.Close()
	if _, err := cache.GetValue(ctx, "key"); err == nil {
		t.Error("Expected GetValue to return an error when Redis is unavailable")
	}
}
