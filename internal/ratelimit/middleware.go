package ratelimit

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"go.uber.org/zap"

	apperrors "github.com/ticketly/ticket-service/pkg/util/errorutil"
)

const defaultMessage = "too many requests, please try again later"

// Rule bounds how many requests one client IP may make to a route per window.
type Rule struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
}

func (r Rule) key(c *fiber.Ctx) string {
	return r.Name + ":" + c.IP()
}

func (r Rule) enabled() bool {
	return r.Max > 0 && r.Window > 0
}

// Middleware rejects requests over rule with 429 and a Retry-After header.
// Counters live in store when one is given; otherwise the process-local
// fiber limiter keeps them. Store failures let the request through.
func Middleware(store Store, rule Rule, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rule.Message == "" {
		rule.Message = defaultMessage
	}
	if !rule.enabled() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	if store == nil {
		return Local(rule, logger)
	}
	return func(c *fiber.Ctx) error {
		count, resetIn, err := store.Increment(c.UserContext(), rule.key(c), rule.Window)
		if err != nil {
			logger.Warn("rate limit store unavailable",
				zap.String("rule", rule.Name),
				zap.Error(err))
			return c.Next()
		}

		remaining := rule.Max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(rule.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if count > rule.Max {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(resetIn)))
			return limitReached(c, rule, logger, zap.Int("count", count))
		}
		return c.Next()
	}
}

// Local limits with fiber's fixed window limiter on its in-memory storage.
// Limits are per process.
func Local(rule Rule, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rule.Message == "" {
		rule.Message = defaultMessage
	}
	if !rule.enabled() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:          rule.Max,
		Expiration:   rule.Window,
		KeyGenerator: rule.key,
		LimitReached: func(c *fiber.Ctx) error {
			return limitReached(c, rule, logger)
		},
	})
}

func limitReached(c *fiber.Ctx, rule Rule, logger *zap.Logger, extra ...zap.Field) error {
	fields := append([]zap.Field{zap.String("rule", rule.Name), zap.String("ip", c.IP())}, extra...)
	logger.Info("rate limit exceeded", fields...)
	return apperrors.NewTooManyRequests(rule.Message)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
