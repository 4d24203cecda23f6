package middleware

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport/http"
)

// DefaultCSRFHeader 客户端回传 CSRF token 的请求头
const DefaultCSRFHeader = "X-CSRF-Token"

// CSRFValidator 校验会话的 CSRF token
type CSRFValidator interface {
	Validate(ctx context.Context, sessionID, token string) (bool, error)
}

// CSRFConfig CSRF 中间件配置
type CSRFConfig struct {
	Validator CSRFValidator // 必需
	Verifier  TokenVerifier // 用于确定会话，必需
	Header    string        // 默认 X-CSRF-Token
	SkipPaths []string      // 无会话的接口，如登录
	SkipFunc  func(*gin.Context) bool
	Auditor   Auditor
	Metrics   *Metrics
	Logger    *log.Logger
}

// CSRF 只校验 POST/PUT/PATCH/DELETE，会话 ID 取自已校验的 access token
//
// 无法确定会话时按认证失败处理（401），会话存在但 token 缺失或不匹配返回 403。
func CSRF(cfg CSRFConfig) gin.HandlerFunc {
	if cfg.Validator == nil || cfg.Verifier == nil {
		panic("middleware: CSRFValidator and TokenVerifier are required")
	}
	if cfg.Header == "" {
		cfg.Header = DefaultCSRFHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}

	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) || shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		claims, reason, err := authenticate(c, cfg.Verifier)
		if err != nil {
			cfg.Metrics.reject(StageAuth)
			record(c, cfg.Auditor, audit.TokenRejected, reason)
			http.GinError(c, apperrors.ErrAuthentication)
			return
		}

		token := c.GetHeader(cfg.Header)
		ok, err := cfg.Validator.Validate(c.Request.Context(), claims.SessionID, token)
		if err != nil || !ok {
			if err == nil {
				err = errors.New("token mismatch")
			}
			cfg.Logger.Debug().Err(err).
				Str("path", c.Request.URL.Path).
				Str("session_id", claims.SessionID).
				Msg("csrf: rejected")

			reason = "token mismatch"
			if token == "" {
				reason = "missing token"
			}
			cfg.Metrics.reject(StageCSRF)
			record(c, cfg.Auditor, audit.CSRFRejected, reason)
			http.GinError(c, apperrors.ErrCSRF)
			return
		}

		c.Next()
	}
}
