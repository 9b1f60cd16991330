package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by GetJSON when the key is absent or the cache is disabled.
var ErrMiss = errors.New("cache miss")

// GetJSON decodes the value stored at key into dst.
func GetJSON(ctx context.Context, key string, dst any) error {
	if client == nil {
		return ErrMiss
	}
	raw, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// SetJSON stores v at key with the given TTL. A disabled cache is a no-op.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, raw, ttl).Err()
}

// Aside implements cache-aside reads: it tries key first, otherwise calls load,
// which must populate dst, and writes the result back with ttl.
// Cache failures never fail the read.
func Aside(ctx context.Context, key string, dst any, ttl time.Duration, load func() error) error {
	if err := GetJSON(ctx, key, dst); err == nil {
		return nil
	}
	if err := load(); err != nil {
		return err
	}
	_ = SetJSON(ctx, key, dst, ttl)
	return nil
}
