package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/core/audit"
	apperrors "github.com/kochabx/authgate/errors"
	"github.com/kochabx/authgate/log"
	"github.com/kochabx/authgate/transport/http"
)

// PermissionChecker 权限检查器接口
type PermissionChecker interface {
	Check(ctx context.Context, c *gin.Context) error
}

// PermissionCheckerFunc 权限检查器函数适配器
type PermissionCheckerFunc func(ctx context.Context, c *gin.Context) error

func (f PermissionCheckerFunc) Check(ctx context.Context, c *gin.Context) error {
	return f(ctx, c)
}

// PermissionConfig 权限中间件配置
type PermissionConfig struct {
	Checker      PermissionChecker         // 权限检查器（必需）
	SkipPaths    []string                  // 跳过检查的路径前缀
	SkipFunc     func(*gin.Context) bool   // 动态跳过判断函数
	ErrorHandler func(*gin.Context, error) // 错误处理函数
	Auditor      Auditor
	Metrics      *Metrics
	Logger       *log.Logger // 自定义日志记录器
}

// Permission 创建权限检查中间件，需放在 Auth 之后
func Permission(cfg PermissionConfig) gin.HandlerFunc {
	if cfg.Checker == nil {
		panic("middleware: PermissionChecker is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.G
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *gin.Context, err error) {
			http.GinError(c, err)
		}
	}

	matcher := NewPathMatcher(cfg.SkipPaths)

	return func(c *gin.Context) {
		if shouldSkip(c, matcher, cfg.SkipFunc) {
			c.Next()
			return
		}

		if err := cfg.Checker.Check(c.Request.Context(), c); err != nil {
			cfg.Logger.Warn().Err(err).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("permission: check failed")
			cfg.Metrics.reject(StagePermission)
			record(c, cfg.Auditor, audit.PermissionDenied, "role not allowed")
			cfg.ErrorHandler(c, err)
			return
		}

		c.Next()
	}
}

// RoleBasedChecker 只允许 claims 角色在 roles 中的请求
func RoleBasedChecker(roles ...string) PermissionChecker {
	return PermissionCheckerFunc(func(ctx context.Context, _ *gin.Context) error {
		claims, ok := ClaimsFromContext(ctx)
		if !ok {
			return apperrors.ErrAuthentication
		}
		if !slices.Contains(roles, claims.Role) {
			return apperrors.ErrPermission
		}
		return nil
	})
}

// RequireRole 等价于 Permission(PermissionConfig{Checker: RoleBasedChecker(roles...)})
func RequireRole(auditor Auditor, metrics *Metrics, roles ...string) gin.HandlerFunc {
	return Permission(PermissionConfig{
		Checker: RoleBasedChecker(roles...),
		Auditor: auditor,
		Metrics: metrics,
	})
}
