// Package middleware provides authentication, rate limiting, logging and tracing middleware.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"campusconnect/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// FailPolicy says what a limiter does when Redis cannot be reached.
type FailPolicy int

const (
	FailOpen FailPolicy = iota
	FailClosed
)

// Limit is a fixed-window budget for one named action.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
	Policy FailPolicy
}

// Campus write paths that are worth throttling per user or IP.
var (
	LimitSignup       = Limit{Name: "signup", Max: 5, Window: 10 * time.Minute}
	LimitLogin        = Limit{Name: "login", Max: 10, Window: 5 * time.Minute}
	LimitRefresh      = Limit{Name: "refresh", Max: 30, Window: 5 * time.Minute}
	LimitAvatar       = Limit{Name: "avatar", Max: 10, Window: 10 * time.Minute}
	LimitForumPost    = Limit{Name: "create_post", Max: 5, Window: 5 * time.Minute}
	LimitForumComment = Limit{Name: "create_comment", Max: 10, Window: time.Minute}
	LimitMessage      = Limit{Name: "send_message", Max: 30, Window: time.Minute}
	LimitSearch       = Limit{Name: "search", Max: 30, Window: time.Minute}
)

var errNoStore = errors.New("rate limit store not configured")

// limitsDisabled keeps local and load-test runs unthrottled.
func limitsDisabled() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

// Take consumes one unit of l for subject and reports how many remain.
// remaining is negative once the window is exhausted.
func Take(ctx context.Context, rdb *redis.Client, l Limit, subject string) (remaining int, err error) {
	if limitsDisabled() {
		return l.Max, nil
	}
	if rdb == nil {
		return 0, errNoStore
	}

	key := "rl:" + l.Name + ":" + subject
	pipe := rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return l.Max - int(incr.Val()), nil
}

// RateLimit enforces l per authenticated user, falling back to client IP.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subject := "ip:" + c.IP()
		if uid := c.Locals("userID"); uid != nil {
			subject = fmt.Sprintf("user:%v", uid)
		}

		remaining, err := Take(c.UserContext(), rdb, l, subject)
		if err != nil {
			if l.Policy == FailOpen {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "rate limit store unavailable, failing closed",
				slog.String("limit", l.Name),
				slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewUnavailableError("Rate limit unavailable", nil))
		}

		if remaining < 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(l.Window.Seconds())))
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Error: "Rate limit exceeded",
				Code:  "RATE_LIMITED",
			})
		}
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		return c.Next()
	}
}
