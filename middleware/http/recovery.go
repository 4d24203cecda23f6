package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport/http"
)

// RecoveryConfig Recovery 中间件配置
type RecoveryConfig struct {
	DisableStack bool        // 不记录堆栈
	Logger       *log.Logger // 默认为 log.G
}

// Recovery 捕获处理链中的 panic 并返回 500 信封
//
// 客户端断开导致的写失败只记 warn，不再写响应。
func Recovery(cfgs ...RecoveryConfig) gin.HandlerFunc {
	var cfg RecoveryConfig
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			if clientGone(err) {
				cfg.Logger.Warn().Err(err).
					Str("path", c.Request.URL.Path).
					Msg("client connection closed")
				_ = c.Error(err)
				c.Abort()
				return
			}

			event := cfg.Logger.Error().Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP())
			if claims, ok := GetClaims(c); ok {
				event = event.Str("user_id", claims.UserID()).Str("session_id", claims.SessionID)
			}
			if !cfg.DisableStack {
				event = event.Bytes("stack", debug.Stack())
			}
			event.Msg("panic recovered")

			http.GinError(c, apperrors.Internal("internal server error"))
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
