package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/port"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a sliding-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window rules backed by a shared attempt store.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// Limit returns a Gin middleware enforcing the rule. A store failure lets
// the request through: the limiter protects against abuse, it must not take
// the endpoint down with it.
func (rl *RateLimiter) Limit(rule RateLimitRule) gin.HandlerFunc {
	if rule.Name == "" {
		rule.Name = "default"
	}

	return func(c *gin.Context) {
		if rl.store == nil || rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			c.Next()
			return
		}

		identifier, ok := rule.Identifier(c)
		if !ok || identifier == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		now := rl.now()
		key := fmt.Sprintf("%s:%s", rule.Name, identifier)

		count, err := rl.store.PruneAndCount(ctx, key, rule.Window, now)
		if err != nil {
			rl.logger.Warn("rate limit check failed",
				zap.String("rule", rule.Name),
				zap.Error(err),
			)
			c.Next()
			return
		}

		headers := c.Writer.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))

		if count >= rule.Limit {
			retrySeconds := int(math.Ceil(rule.Window.Seconds()))
			headers.Set("X-RateLimit-Remaining", "0")
			headers.Set("Retry-After", strconv.Itoa(retrySeconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, newErrorResponse(c,
				fmt.Sprintf("too many requests, try again in %d seconds", retrySeconds)))
			return
		}

		if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
			rl.logger.Warn("rate limit record failed",
				zap.String("rule", rule.Name),
				zap.Error(err),
			)
		}

		remaining := rule.Limit - count - 1
		if remaining < 0 {
			remaining = 0
		}
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}
