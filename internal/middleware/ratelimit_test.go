package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTake_DisabledEnvironments(t *testing.T) {
	for _, env := range []string{"", "test", "development", "stress"} {
		t.Run("env="+env, func(t *testing.T) {
			t.Setenv("APP_ENV", env)
			remaining, err := Take(context.Background(), nil, LimitLogin, "ip:1.2.3.4")
			require.NoError(t, err)
			assert.Equal(t, LimitLogin.Max, remaining)
		})
	}

	t.Setenv("APP_ENV", "production")
	_, err := Take(context.Background(), nil, LimitLogin, "ip:1.2.3.4")
	assert.ErrorIs(t, err, errNoStore)
}

func TestTake_CountsWithinWindow(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()
	l := Limit{Name: "login", Max: 2, Window: time.Minute}

	for want := 1; want >= 0; want-- {
		remaining, err := Take(ctx, rdb, l, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}
	remaining, err := Take(ctx, rdb, l, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Negative(t, remaining)

	// Another subject has its own budget.
	remaining, err = Take(ctx, rdb, l, "user:9")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)

	mr.FastForward(2 * time.Minute)
	remaining, err = Take(ctx, rdb, l, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, 1, remaining)
}

func TestRateLimitMiddleware(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	one := Limit{Name: "create_post", Max: 1, Window: time.Minute}

	t.Run("fail open without redis", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		app := fiber.New()
		app.Post("/posts", RateLimit(nil, one), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("fail closed without redis", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		closed := one
		closed.Policy = FailClosed
		app := fiber.New()
		app.Post("/posts", RateLimit(nil, closed), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("exceeded limit returns 429 with Retry-After", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app := fiber.New()
		app.Post("/posts", RateLimit(rdb, one), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

		resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	})

	t.Run("keys by user when authenticated", func(t *testing.T) {
		t.Setenv("APP_ENV", "production")
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		app := fiber.New()
		app.Post("/posts", func(c *fiber.Ctx) error {
			c.Locals("userID", uint(12))
			return c.Next()
		}, RateLimit(rdb, one), ok)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, mr.Exists("rl:create_post:user:12"))
	})
}
