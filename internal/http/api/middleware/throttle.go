package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/lmslight/lms-core/internal/ratelimit"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// KeyFunc derives the rate limit subject for a request.
type KeyFunc func(c *gin.Context) string

// KeyByUser keys by the authenticated user and falls back to the client IP.
func KeyByUser(c *gin.Context) string {
	if userID := c.GetString(ContextUserID); userID != "" {
		return userID
	}
	return KeyByClientIP(c)
}

// KeyByClientIP keys by the client IP.
func KeyByClientIP(c *gin.Context) string {
	return c.ClientIP()
}

// Throttle enforces the named policy of action and reports it in X-RateLimit-* headers.
// Limiter errors let the request through.
func Throttle(limits *ratelimit.Manager, action string, key KeyFunc) gin.HandlerFunc {
	if key == nil {
		key = KeyByUser
	}
	return func(c *gin.Context) {
		policy, ok := limits.Policies().ForAction(action)
		if !ok {
			log.WithField("action", action).Warn("throttle: unknown action, skipping")
			c.Next()
			return
		}

		result, errCheck := limits.Check(c.Request.Context(), key(c), action, policy)
		if errCheck != nil {
			if !errors.Is(errCheck, ratelimit.ErrInvalidArgument) {
				log.WithError(errCheck).WithField("action", action).Warn("throttle: check failed")
			}
			c.Next()
			return
		}

		SetRateLimitHeaders(c, policy.Limit, result)
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds(result.Reset, limits.Now())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":     "rate limit exceeded",
				"remaining": result.Remaining,
				"limit":     policy.Limit,
				"reset_at":  result.Reset,
			})
			return
		}
		c.Next()
	}
}

// SetRateLimitHeaders writes the standard rate limit headers for result.
func SetRateLimitHeaders(c *gin.Context, limit int, result ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(result.Reset.Unix(), 10))
}

// RetryAfterSeconds rounds the wait until reset up to whole seconds, never below zero.
func RetryAfterSeconds(reset, now time.Time) int {
	wait := reset.Sub(now)
	if wait <= 0 {
		return 0
	}
	return int(math.Ceil(wait.Seconds()))
}
