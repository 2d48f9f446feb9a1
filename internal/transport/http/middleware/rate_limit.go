package middleware

import (
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/port"
)

// RateLimiter applies per-client sliding-window limits on sensitive
// endpoints. It is a perimeter defense in front of the durable lockout, not a
// replacement for it.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
}

// NewRateLimiter constructs a limiter over the supplied store.
func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: log}
}

// Limit returns a middleware that allows at most max requests per client IP
// within the window. The limiter fails open: if the store is unreachable the
// request proceeds and the outage is logged.
func (l *RateLimiter) Limit(scope string, max int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.store == nil || max <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("%s:%s", scope, c.ClientIP())
		count, err := l.store.Increment(c.Request.Context(), key, window)
		if err != nil {
			l.logger.Warn("rate limit store unavailable",
				zap.String("scope", scope), zap.Error(err))
			c.Next()
			return
		}

		if count > int64(max) {
			retryAfter := window
			if ttl, err := l.store.TTL(c.Request.Context(), key); err == nil && ttl > 0 {
				retryAfter = ttl
			}
			c.Header("Retry-After", fmt.Sprintf("%d", int(math.Ceil(retryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				newErrorResponse(c, "rate limit exceeded"))
			return
		}

		c.Next()
	}
}
