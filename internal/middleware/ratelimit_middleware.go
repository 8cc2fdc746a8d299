package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"carelink-chat/internal/redis"
	"carelink-chat/internal/services"
	"carelink-chat/internal/transport/httpdto"
	"carelink-chat/pkg/logger"

	"github.com/gin-gonic/gin"
)

type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*redis.RateLimitResult, error)
}

// MessageRateLimitMiddleware enforces the per-user send quota and must follow
// AuthMiddleware. When the limiter errors the request is let through: losing Redis should
// not stop patients from writing.
func MessageRateLimitMiddleware(limiter MessageLimiter, l *logger.Logger) gin.HandlerFunc {
	if limiter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		userID, ok := services.UserIDFromContext(ctx)
		if !ok {
			c.Next()
			return
		}

		quota, err := limiter.AllowMessage(ctx, userID.String())
		if err != nil {
			l.WithContext(ctx).Warnf("send quota unavailable: %v", err)
			c.Next()
			return
		}

		writeQuotaHeaders(c.Writer.Header(), quota)
		if !quota.Allowed {
			c.Header("Retry-After", strconv.Itoa(ceilSeconds(quota.ResetIn)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("message rate limit exceeded", "RATE_LIMITED"))
			return
		}
		c.Next()
	}
}

func writeQuotaHeaders(h http.Header, quota *redis.RateLimitResult) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(quota.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(quota.Remaining))
	h.Set("X-RateLimit-Reset", strconv.Itoa(ceilSeconds(quota.ResetIn)))
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
