// Package cache holds the shared Redis client and the cache-aside helpers
// the campus services use for profiles, notices, events and the dashboard.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campusconnect/internal/middleware"
	"campusconnect/internal/observability"

	"github.com/redis/go-redis/v9"
)

var client *redis.Client

// instrumentHook feeds command latency and failures into Prometheus.
// redis.Nil is a cache miss, not a failure.
type instrumentHook struct{}

func (instrumentHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (instrumentHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		observability.RedisCommandLatency.WithLabelValues(cmd.Name()).Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (instrumentHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		observability.RedisCommandLatency.WithLabelValues("pipeline").Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewClient accepts host:port or a redis:// URL. It does not dial.
func NewClient(addr string) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr}
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, err
		}
		opts = parsed
	}
	c := redis.NewClient(opts)
	c.AddHook(instrumentHook{})
	return c, nil
}

// Connect builds a client and pings it within five seconds.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	c, err := NewClient(addr)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// InitRedis connects the shared client. Campus Connect runs without Redis,
// so a failure only leaves the client nil: caches are bypassed, rate limits
// fail open and realtime fan-out stays in process.
func InitRedis(addr string) {
	c, err := Connect(context.Background(), addr)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without cache",
			slog.String("addr", redactURL(addr)),
			slog.String("error", err.Error()))
		client = nil
		return
	}
	middleware.Logger.Info("Redis connected", slog.String("addr", redactURL(addr)))
	client = c
}

// redactURL hides the password of a redis:// URL.
func redactURL(addr string) string {
	scheme, rest, ok := strings.Cut(addr, "://")
	if !ok {
		return addr
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return addr
	}
	return scheme + "://***@" + rest[at+1:]
}

// GetClient returns the shared client, or nil when Redis is unavailable.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the shared client. Tests use it to point the cache at miniredis.
func SetClient(c *redis.Client) {
	client = c
}
