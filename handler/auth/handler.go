// Package auth 提供登录、MFA、会话与管理接口。
package auth

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kochabx/authgate/account"
	"github.com/kochabx/authgate/core/audit"
	"github.com/kochabx/authgate/core/auth/csrf"
	"github.com/kochabx/authgate/core/auth/lockout"
	"github.com/kochabx/authgate/core/auth/mfa"
	"github.com/kochabx/authgate/core/auth/token"
	"github.com/kochabx/authgate/core/rate"
	"github.com/kochabx/authgate/log"
	middleware "github.com/kochabx/authgate/middleware/http"
)

// AuditQuerier 按用户查询持久化的审计事件
type AuditQuerier interface {
	Query(ctx context.Context, userID string, limit int) ([]audit.Event, error)
}

// Deps 处理器依赖
type Deps struct {
	Directory account.Directory
	Hasher    *account.Hasher
	Tokens    *token.Service
	Lockout   *lockout.Lockout
	MFA       *mfa.Manager
	TOTP      *mfa.TOTP
	CSRF      *csrf.Manager
	Audit     *audit.Log
	// 可选，配置了数据库审计时用于按用户查询
	AuditQuerier AuditQuerier
	Notifier     Notifier
	Gate         *middleware.Gate
	Metrics      *Metrics
	Logger       *log.Logger
}

// Handler 认证接口
type Handler struct {
	Deps
	now func() time.Time
}

// New 创建处理器
func New(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = log.G
	}
	if deps.Notifier == nil {
		deps.Notifier = NewLogNotifier(deps.Logger, false)
	}
	if deps.TOTP == nil {
		deps.TOTP = mfa.NewTOTP()
	}
	return &Handler{Deps: deps, now: time.Now}
}

// CSRFSkipPaths 无会话的写接口
var CSRFSkipPaths = []string{
	"/auth/login",
	"/auth/mfa/verify",
	"/auth/refresh",
}

// Register 注册路由
//
//	全部路由先经过 general 限流
//	/auth  未登录接口再使用类别 auth
//	/auth  已登录接口与 /admin 再使用类别 api
func (h *Handler) Register(r gin.IRouter) {
	r = r.Group("", h.Gate.General())

	public := r.Group("/auth", h.Gate.Chain(rate.Auth)...)
	public.POST("/login", h.login)
	public.POST("/mfa/verify", h.verifyMFA)
	public.POST("/refresh", h.refresh)

	session := r.Group("/auth", h.Gate.Chain(rate.API)...)
	session.Use(h.Gate.Auth())
	session.POST("/logout", h.logout)
	session.POST("/logout/all", h.logoutAll)
	session.GET("/csrf", h.regenerateCSRF)
	session.GET("/me", h.me)
	session.GET("/sessions", h.sessions)
	session.POST("/mfa/totp/setup", h.setupTOTP)
	session.POST("/mfa/totp/enable", h.enableTOTP)

	admin := r.Group("/admin", h.Gate.Chain(rate.API)...)
	admin.Use(h.Gate.Auth(), h.Gate.RequireRole(account.RoleAdmin))
	admin.GET("/audit", h.auditLog)
	admin.POST("/unlock", h.unlock)
	admin.GET("/users/:id/sessions", h.userSessions)
	admin.DELETE("/users/:id/sessions", h.revokeUserSessions)
}

// record 记录审计事件，请求信息取自 c
func (h *Handler) record(c *gin.Context, e audit.Event) {
	e.IP = c.ClientIP()
	e.Method = c.Request.Method
	e.Path = c.Request.URL.Path
	if claims, ok := middleware.GetClaims(c); ok {
		if e.UserID == "" {
			e.UserID = claims.UserID()
		}
		if e.SessionID == "" {
			e.SessionID = claims.SessionID
		}
	}
	h.Audit.Record(c.Request.Context(), e)
}
