package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/kochabx/authgate/log"
)

// LoggerConfig 访问日志配置
//
// 请求体与响应体不记录：登录、MFA 与刷新接口的正文均含凭据。
type LoggerConfig struct {
	SkipPaths   []string                // 跳过记录的路径，语法同 PathMatcher
	SkipFunc    func(*gin.Context) bool // 动态跳过判断函数
	HandlerName bool                    // 是否记录处理器名称
	Logger      *log.Logger             // 默认为 log.G
}

// Logger 记录访问日志
//
// 5xx 记为 error，被网关或处理器拒绝的 4xx 记为 warn，其余为 info。
// Auth 阶段通过后的请求附带 user_id 与 session_id。
func Logger(cfgs ...LoggerConfig) gin.HandlerFunc {
	var cfg LoggerConfig
	if len(cfgs) > 0 {
		cfg = cfgs[0]
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

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		event := accessEvent(cfg.Logger, status).
			Int("status", status).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())

		if id := c.GetHeader("X-Request-Id"); id != "" {
			event = event.Str("request_id", id)
		}
		if claims, ok := GetClaims(c); ok {
			event = event.Str("user_id", claims.UserID()).
				Str("role", claims.Role).
				Str("session_id", claims.SessionID)
		}
		if v := c.Writer.Header().Get("Retry-After"); v != "" {
			event = event.Str("retry_after", v)
		}
		if cfg.HandlerName {
			event = event.Str("handler", c.HandlerName())
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			event = event.Strs("errors", errs.Errors())
		}
		event.Msg("request")
	}
}

func accessEvent(logger *log.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status >= http.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}
