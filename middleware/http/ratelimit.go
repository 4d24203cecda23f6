package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/rate"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport/http"
)

// RateLimiter 按类别与客户端判定
type RateLimiter interface {
	Allow(ctx context.Context, class rate.Class, client string) (rate.Decision, error)
}

// RateLimitConfig 限流中间件配置
type RateLimitConfig struct {
	Limiter   RateLimiter // 限流器（必需）
	Class     rate.Class  // 默认 general
	KeyFunc   func(*gin.Context) string
	SkipPaths []string
	SkipFunc  func(*gin.Context) bool
	Auditor   Auditor
	Metrics   *Metrics
	Logger    *log.Logger
}

// RateLimit 滑动窗口限流，超限返回 429 并设置 Retry-After
//
// 限流存储出错时放行并记录错误日志。
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		panic("middleware: RateLimiter is required")
	}
	if cfg.Class == "" {
		cfg.Class = rate.General
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *gin.Context) string { return c.ClientIP() }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}

	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		client := cfg.KeyFunc(c)
		d, err := cfg.Limiter.Allow(c.Request.Context(), cfg.Class, client)
		if err != nil {
			cfg.Logger.Error().Err(err).Str("class", string(cfg.Class)).Msg("rate limit: limiter failed")
			c.Next()
			return
		}

		if d.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		}

		if !d.Allowed {
			cfg.Metrics.reject(StageRateLimit)
			record(c, cfg.Auditor, audit.RateLimited, string(cfg.Class))
			http.GinError(c, apperrors.RateLimited(d.RetryAfter))
			return
		}

		c.Next()
	}
}
