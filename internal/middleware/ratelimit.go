package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maildash/backend/internal/monitoring"
	"maildash/backend/internal/ratelimit"
)

// ShareRateLimit 分享页按客户端 IP 限流。
//
// limiter 为 nil 表示限流关闭，直接放行。
func ShareRateLimit(limiter ratelimit.Limiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		if !limiter.Allow(c.Request.Context(), c.ClientIP()) {
			metrics.RateLimitBlocks.Inc()
			c.Header("Retry-After", "60")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"code": http.StatusTooManyRequests,
				"msg":  "请求过于频繁，请稍后再试",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
