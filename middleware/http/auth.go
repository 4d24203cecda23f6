package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport/http"
)

var errMissingToken = errors.New("missing bearer token")

// AuthConfig 认证中间件配置
type AuthConfig struct {
	Verifier  TokenVerifier           // token 校验（必需）
	SkipPaths []string                // 跳过认证的路径
	SkipFunc  func(*gin.Context) bool // 动态跳过判断函数
	Auditor   Auditor
	Metrics   *Metrics
	Logger    *log.Logger
}

// Auth 校验 Authorization: Bearer <token>，通过后 claims 放入 request context
//
// 所有失败统一返回 401 "invalid or expired token"。
func Auth(cfg AuthConfig) gin.HandlerFunc {
	if cfg.Verifier == nil {
		panic("middleware: TokenVerifier is required")
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

		if _, reason, err := authenticate(c, cfg.Verifier); err != nil {
			cfg.Logger.Debug().Err(err).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("auth: rejected")
			cfg.Metrics.reject(StageAuth)
			record(c, cfg.Auditor, audit.TokenRejected, reason)
			http.GinError(c, apperrors.ErrAuthentication)
			return
		}

		c.Next()
	}
}
